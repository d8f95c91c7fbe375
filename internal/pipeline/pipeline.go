// Package pipeline drives one scrape run: session skip, the cheap store
// check, the detail fetch, the authoritative check and the append, with the
// success cap and the known-duplicate streak as stop conditions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"jobfeed/internal/dedup"
	"jobfeed/internal/models"
	"jobfeed/internal/source"

	"charm.land/log/v2"
)

// Profile describes how one source identifies and enriches its records.
type Profile interface {
	Name() string
	SessionKey(rec models.Record) string
	Prepare(rec models.Record) (models.Record, error)
	Enrich(rec models.Record, now time.Time) models.Record
}

// Extractor yields candidate records in feed order and io.EOF when done.
type Extractor interface {
	Next(ctx context.Context) (models.Record, error)
}

// DetailFetcher performs the expensive step that turns identity fields into
// a complete record.
type DetailFetcher interface {
	Fetch(ctx context.Context, identity models.Record) (models.Record, error)
}

type FetchFunc func(ctx context.Context, identity models.Record) (models.Record, error)

func (f FetchFunc) Fetch(ctx context.Context, identity models.Record) (models.Record, error) {
	return f(ctx, identity)
}

// Appender persists one complete record.
type Appender interface {
	Append(rec models.Record) (int, error)
	Path() string
}

type Options struct {
	MaxItems       int // successes before stopping, 0 = unlimited
	StopAfterKnown int // consecutive known duplicates before stopping, 0 = never
	RetentionDays  int
	SkipExpire     bool
	Now            func() time.Time
}

type Runner struct {
	profile Profile
	store   dedup.DuplicateStore
	fetcher DetailFetcher
	out     Appender
	opts    Options
	session *dedup.Session
}

func New(profile Profile, store dedup.DuplicateStore, fetcher DetailFetcher, out Appender, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		profile: profile,
		store:   store,
		fetcher: fetcher,
		out:     out,
		opts:    opts,
		session: dedup.NewSession(),
	}
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeSessionSkip
	outcomeDuplicate
	outcomeFailed
	outcomeNewFailed // passed the duplicate checks but was not persisted
)

// Run consumes ex until it is exhausted, a stop condition fires or ctx is
// cancelled. It always returns a summary.
func (r *Runner) Run(ctx context.Context, ex Extractor) *models.Summary {
	sum := models.NewSummary(r.profile.Name(), r.out.Path(), r.opts.Now())
	defer func() {
		sum.FinishedAt = r.opts.Now()
		logSummary(sum)
	}()

	r.prepareStore(ctx)

	for {
		if ctx.Err() != nil {
			log.Warn("🛑 Shutdown requested, stopping after the current record")
			sum.StopReason = models.StopCancelled
			return sum
		}

		candidate, err := ex.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return sum
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			sum.StopReason = models.StopCancelled
			return sum
		case errors.Is(err, source.ErrExtraction):
			log.Warn("⚠️ Could not extract record", "err", err)
			sum.Failed++
			continue
		case err != nil:
			log.Error("❌ Extractor stopped", "err", err)
			sum.StopReason = models.StopSourceFailed
			return sum
		}

		// records already started run to completion even if ctx is cancelled
		if stop, ok := r.tally(sum, r.process(context.WithoutCancel(ctx), candidate, sum)); ok {
			sum.StopReason = stop
			return sum
		}
	}
}

// tally updates the counters for one outcome and reports whether a stop
// condition fired. Any record that is not a known duplicate ends the streak.
func (r *Runner) tally(sum *models.Summary, res outcome) (models.StopReason, bool) {
	switch res {
	case outcomeSaved:
		sum.Succeeded++
		sum.KnownStreak = 0
		if r.opts.MaxItems > 0 && sum.Succeeded >= r.opts.MaxItems {
			log.Info("🎯 Reached max items", "max", r.opts.MaxItems)
			return models.StopCapReached, true
		}
	case outcomeNewFailed:
		sum.Failed++
		sum.KnownStreak = 0
	case outcomeDuplicate:
		sum.Duplicates++
		sum.KnownStreak++
		if r.opts.StopAfterKnown > 0 && sum.KnownStreak >= r.opts.StopAfterKnown {
			log.Info("⏹️ Hit a run of known records, the rest of the feed was captured before",
				"streak", sum.KnownStreak)
			return models.StopKnownStreak, true
		}
	case outcomeSessionSkip:
		sum.SessionSkipped++
	case outcomeFailed:
		sum.Failed++
	}
	return "", false
}

func (r *Runner) prepareStore(ctx context.Context) {
	if !r.opts.SkipExpire {
		removed, err := r.store.Expire(ctx, r.opts.RetentionDays)
		if err != nil {
			log.Warn("⚠️ Could not expire old entries", "err", err)
		} else if removed > 0 {
			log.Debug("🧹 Expired old entries", "removed", removed, "retention_days", r.opts.RetentionDays)
		}
	}

	stats, err := r.store.Stats(ctx)
	if err != nil {
		log.Warn("⚠️ Could not read store stats", "err", err)
		return
	}
	log.Info("📊 Duplicate store loaded", "source", r.profile.Name(), "tracked", stats.Total)
}

func (r *Runner) process(ctx context.Context, candidate models.Record, sum *models.Summary) (result outcome) {
	var (
		key      string
		identity models.Record
		complete models.Record
		isNew    bool // not known to the store
		claimed  bool // Confirm may have recorded complete in the store
		saved    bool
	)
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		log.Error("❌ Panic while processing record", "key", key, "record", label(identity), "panic", p)
		result = outcomeFailed
		if claimed {
			r.abandon(ctx, key, complete)
		}
		switch {
		case saved:
			result = outcomeSaved
		case isNew:
			result = outcomeNewFailed
		}
	}()

	identity, err := r.profile.Prepare(candidate)
	if err != nil {
		log.Warn("⚠️ Skipping unusable record", "err", err)
		return outcomeFailed
	}

	key = r.profile.SessionKey(identity)
	if r.session.Seen(key) {
		log.Debug("🔁 Already handled in this run", "key", key)
		return outcomeSessionSkip
	}
	r.session.Mark(key)

	known, err := r.store.Seen(ctx, identity)
	if err != nil {
		log.Error("❌ Duplicate store check failed, skipping", "key", key, "err", err)
		return outcomeFailed
	}
	if known {
		log.Info("⏭️ Known record, skipping detail fetch", "key", key)
		return outcomeDuplicate
	}
	isNew = true

	detail, err := r.fetcher.Fetch(ctx, identity)
	if err != nil {
		log.Warn("⚠️ Detail fetch failed", "key", key, "record", label(identity), "err", err)
		return outcomeNewFailed
	}
	complete = r.profile.Enrich(identity.Merge(detail), r.opts.Now())

	claimed = true
	known, err = r.store.Confirm(ctx, complete)
	if err != nil {
		log.Error("❌ Duplicate store check failed, skipping", "key", key, "err", err)
		return outcomeFailed
	}
	if known {
		log.Info("⏭️ Known record after detail fetch", "key", key)
		return outcomeDuplicate
	}

	total, err := r.out.Append(complete)
	if err != nil {
		r.abandon(ctx, key, complete)
		return outcomeNewFailed
	}
	claimed, saved = false, true

	if err := r.store.Commit(ctx, complete); err != nil {
		log.Warn("⚠️ Saved but could not remember record", "key", key, "err", err)
	}
	if keyed, ok := r.store.(dedup.Keyed); ok && keyed.Key(complete) == "" {
		sum.Unprotected++
	}
	log.Debug("✅ Committed", "key", key, "total", total)
	return outcomeSaved
}

// abandon releases whatever Confirm recorded for a record that was not
// persisted, so a later run picks it up again.
func (r *Runner) abandon(ctx context.Context, key string, complete models.Record) {
	if err := r.store.Abandon(context.WithoutCancel(ctx), complete); err != nil {
		log.Warn("⚠️ Could not release store entry", "key", key, "err", err)
	}
}

// label names a record in logs: title @ company for jobs, the author for posts.
func label(rec models.Record) string {
	if title := rec.Get(models.FieldTitle); title != "" {
		return title + " @ " + rec.Get(models.FieldCompany)
	}
	return rec.Get(models.FieldPersonName)
}

func logSummary(sum *models.Summary) {
	log.Info(fmt.Sprintf("🏁 Run finished: %d saved, %d duplicates, %d failed",
		sum.Succeeded, sum.Duplicates, sum.Failed),
		"source", sum.Source,
		"session_skipped", sum.SessionSkipped,
		"unprotected", sum.Unprotected,
		"stop", sum.StopReason,
		"output", sum.OutputPath,
		"duration", sum.Duration().Round(time.Millisecond),
	)
}
