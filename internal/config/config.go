// Load envs from .env
// Load YAML config
// Env overrides
// Provide default values
// Validate config

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"jobfeed/internal/source"

	"charm.land/log/v2"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

const (
	defaultDataDir        = "data"
	defaultServerAddr     = ":8080"
	defaultStopAfterKnown = 5
	jobsRetentionDays     = 30
	postsRetentionDays    = 90
)

// SourceConfig holds the per-source settings. Zero values are replaced by
// defaults, so retention and the stop threshold cannot be set to 0 here; use
// the expire command for a full wipe.
type SourceConfig struct {
	DBPath         string `yaml:"db_path" validate:"required"`
	OutputDir      string `yaml:"output_dir" validate:"required"`
	OutputFile     string `yaml:"output_file"` // reused across runs when set
	MaxItems       int    `yaml:"max_items" validate:"gte=0"`
	RetentionDays  int    `yaml:"retention_days" validate:"gte=1"`
	StopAfterKnown int    `yaml:"stop_after_known" validate:"gte=0"`
}

type Config struct {
	DataDir     string `yaml:"data_dir" validate:"required"`
	TestingMode bool   `yaml:"testing_mode"`
	DatabaseURL string `yaml:"database_url" validate:"omitempty,url"`
	ServerAddr  string `yaml:"server_addr" validate:"required"`
	//Notifications
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id" validate:"required_with=TelegramToken"`
	//Sources
	Jobs  SourceConfig `yaml:"jobs"`
	Posts SourceConfig `yaml:"posts"`
}

// Load reads .env, then the YAML file at path (a missing file means
// defaults), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("No config file, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SCRAPER_TESTING_MODE"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SCRAPER_TESTING_MODE: %w", err)
		}
		c.TestingMode = on
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.TelegramToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		c.TelegramChatID = id
	}
	if port := os.Getenv("PORT"); port != "" {
		c.ServerAddr = ":" + strings.TrimPrefix(port, ":")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.ServerAddr == "" {
		c.ServerAddr = defaultServerAddr
	}
	c.Jobs.fill(c.DataDir, "job_hashes.db", jobsRetentionDays, 0)
	c.Posts.fill(c.DataDir, "linkedin_posts.db", postsRetentionDays, defaultStopAfterKnown)
}

func (s *SourceConfig) fill(dataDir, dbName string, retention, stopAfter int) {
	if s.DBPath == "" {
		s.DBPath = filepath.Join(dataDir, dbName)
	}
	if s.OutputDir == "" {
		s.OutputDir = dataDir
	}
	if s.RetentionDays == 0 {
		s.RetentionDays = retention
	}
	if s.StopAfterKnown == 0 {
		s.StopAfterKnown = stopAfter
	}
}

// Source returns the settings for the named source.
func (c *Config) Source(name string) (SourceConfig, error) {
	switch strings.ToLower(name) {
	case source.KindJobs:
		return c.Jobs, nil
	case source.KindPosts:
		return c.Posts, nil
	}
	return SourceConfig{}, fmt.Errorf("no config for source %q", name)
}

// NotificationsEnabled reports whether a Telegram summary should be sent.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}
