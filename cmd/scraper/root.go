package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobfeed/internal/config"
	"jobfeed/internal/database"
	"jobfeed/internal/dedup"
	"jobfeed/internal/models"
	"jobfeed/internal/output"
	"jobfeed/internal/pipeline"
	"jobfeed/internal/reporter"
	"jobfeed/internal/source"

	"charm.land/log/v2"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	ConfigPath string
	Verbose    bool
}

type runFlags struct {
	Source         string
	Input          string
	Output         string
	MaxItems       int
	StopAfterKnown int
	ReadOnly       bool
	SkipExpire     bool
	Notify         bool
}

// index is satisfied by both database backends.
type index interface {
	dedup.HashIndex
	dedup.PostIndex
	Close() error
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Deduplicate and persist scraped job listings and saved posts",
		Long: "Reads candidate records captured by the browser extractor, skips anything already\n" +
			"seen in this run or a previous one, and appends new records to a JSON dataset.",
		SilenceUsage: true,
		PersistentPreRun: func(c *cobra.Command, args []string) {
			if g.Verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", config.DefaultPath, "Path to the YAML config")
	cmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(newRunCmd(g), newExpireCmd(g), newStatsCmd(g))
	return cmd
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one capture of a source feed",
		Example: `  # Job search results captured to a file
  scraper run --source jobs --input capture.json

  # Saved posts piped as NDJSON, stop after 10 new posts
  extractor | scraper run --source posts --input - --max 10`,
		RunE: func(c *cobra.Command, args []string) error {
			return run(c.Context(), g, f, c.Flags().Changed("read-only"))
		},
	}
	cmd.Flags().StringVarP(&f.Source, "source", "s", source.KindJobs, "Source feed: jobs or posts")
	cmd.Flags().StringVarP(&f.Input, "input", "i", "-", "Captured candidates (JSON array or NDJSON), - for stdin")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "Output file (default: configured file or a timestamped one)")
	cmd.Flags().IntVarP(&f.MaxItems, "max", "m", -1, "Stop after this many new records (0 = unlimited)")
	cmd.Flags().IntVar(&f.StopAfterKnown, "stop-after-known", -1, "Stop after this many consecutive known records (0 = never)")
	cmd.Flags().BoolVar(&f.ReadOnly, "read-only", false, "Testing mode: treat every record as new and remember nothing")
	cmd.Flags().BoolVar(&f.SkipExpire, "skip-expire", false, "Do not drop old entries before the run")
	cmd.Flags().BoolVar(&f.Notify, "notify", true, "Send the run summary to Telegram when configured")
	return cmd
}

func newExpireCmd(g *globalFlags) *cobra.Command {
	var sourceName string
	var days int

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Drop duplicate-store entries older than the retention window",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			cfg, err := config.Load(g.ConfigPath)
			if err != nil {
				return err
			}
			sc, err := cfg.Source(sourceName)
			if err != nil {
				return err
			}
			if !c.Flags().Changed("days") {
				days = sc.RetentionDays
			}

			idx, err := openIndex(ctx, cfg, sc)
			if err != nil {
				return err
			}
			defer idx.Close()

			store, err := newStore(sourceName, idx, false)
			if err != nil {
				return err
			}
			removed, err := store.Expire(ctx, days)
			if err != nil {
				return fmt.Errorf("expire: %w", err)
			}
			log.Info("🧹 Expire finished", "source", sourceName, "removed", removed, "retention_days", days)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceName, "source", "s", source.KindJobs, "Source feed: jobs or posts")
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (0 drops everything)")
	return cmd
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many records each duplicate store tracks",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			cfg, err := config.Load(g.ConfigPath)
			if err != nil {
				return err
			}
			for _, name := range []string{source.KindJobs, source.KindPosts} {
				sc, _ := cfg.Source(name)
				if err := printStats(ctx, c, cfg, sc, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printStats(ctx context.Context, c *cobra.Command, cfg *config.Config, sc config.SourceConfig, name string) error {
	idx, err := openIndex(ctx, cfg, sc)
	if err != nil {
		return err
	}
	defer idx.Close()

	store, err := newStore(name, idx, false)
	if err != nil {
		return err
	}
	st, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("%s stats: %w", name, err)
	}
	c.Printf("%-6s %6d tracked  oldest %s  newest %s\n", name, st.Total, formatDay(st.Oldest), formatDay(st.Newest))
	return nil
}

func run(ctx context.Context, g *globalFlags, f *runFlags, readOnlySet bool) error {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return err
	}
	profile, err := source.Lookup(f.Source)
	if err != nil {
		return err
	}
	sc, err := cfg.Source(profile.Name())
	if err != nil {
		return err
	}

	readOnly := cfg.TestingMode
	if readOnlySet {
		readOnly = f.ReadOnly
	}
	if readOnly {
		log.Warn("🧪 Testing mode: duplicate store is read-only")
	}

	idx, err := openIndex(ctx, cfg, sc)
	if err != nil {
		return err
	}
	defer idx.Close()

	store, err := newStore(profile.Name(), idx, readOnly)
	if err != nil {
		return err
	}

	feed, err := source.OpenFeed(f.Input)
	if err != nil {
		return err
	}
	defer feed.Close()

	opts := pipeline.Options{
		MaxItems:       pick(f.MaxItems, sc.MaxItems),
		StopAfterKnown: pick(f.StopAfterKnown, sc.StopAfterKnown),
		RetentionDays:  sc.RetentionDays,
		SkipExpire:     f.SkipExpire,
	}
	out := output.NewFile(outputPath(f.Output, sc, profile.OutputPrefix(), time.Now()))
	log.Info("🚀 Starting run", "source", profile.Name(), "input", f.Input, "output", out.Path(),
		"max", opts.MaxItems, "stop_after_known", opts.StopAfterKnown)

	sum := pipeline.New(profile, store, source.Passthrough{}, out, opts).Run(ctx, feed)

	if f.Notify && cfg.NotificationsEnabled() {
		notify(cfg, sum)
	}
	return nil
}

func notify(cfg *config.Config, sum *models.Summary) {
	bot, err := reporter.NewTelegramReporter(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn("⚠️ Telegram unavailable, summary not sent", "err", err)
		return
	}
	if err := bot.SendSummary(sum); err != nil {
		log.Warn("⚠️ Failed to send summary to Telegram", "err", err)
		return
	}
	log.Info("📨 Summary sent to Telegram")
}

func openIndex(ctx context.Context, cfg *config.Config, sc config.SourceConfig) (index, error) {
	if cfg.DatabaseURL != "" {
		pg, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Debug("🐘 Using PostgreSQL index")
		return pg, nil
	}
	db, err := database.OpenSQLite(ctx, sc.DBPath)
	if err != nil {
		return nil, err
	}
	log.Debug("🗄️ Using SQLite index", "path", sc.DBPath)
	return db, nil
}

func newStore(name string, idx index, readOnly bool) (dedup.DuplicateStore, error) {
	switch strings.ToLower(name) {
	case source.KindJobs:
		return dedup.NewHashStore(idx, dedup.WithReadOnly(readOnly)), nil
	case source.KindPosts:
		return dedup.NewIDStore(idx, dedup.WithReadOnly(readOnly)), nil
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

func outputPath(flag string, sc config.SourceConfig, prefix string, now time.Time) string {
	switch {
	case flag != "":
		return flag
	case sc.OutputFile != "":
		return sc.OutputFile
	}
	return output.Filename(sc.OutputDir, prefix, now)
}

// pick prefers a flag value that was set (>= 0) over the configured one.
func pick(flag, configured int) int {
	if flag >= 0 {
		return flag
	}
	return configured
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
