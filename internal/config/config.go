// Package config handles application configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceKind selects the commit discovery backend.
type SourceKind string

// Supported source kinds.
const (
	SourceGitHub SourceKind = "github"
	SourceFeed   SourceKind = "feed"
)

// Config holds the application configuration.
type Config struct {
	Keyword             string
	SourceKind          SourceKind
	FeedURL             string
	GitHubToken         string
	GitHubBaseURL       string
	TelegramBotToken    string
	TelegramChatID      int64
	DatabasePath        string
	Production          bool
	IngestInterval      time.Duration
	BroadcastCron       string
	RequireKeywordMatch bool
	LogLevel            string
}

// fileConfig mirrors Config for YAML decoding. Durations travel as strings;
// the deployment mode is deliberately env-only (APP_ENV) so a config file
// checked in for development can never flip a deployment into production.
type fileConfig struct {
	Keyword string `yaml:"keyword"`
	Source  struct {
		Kind    string `yaml:"kind"`
		FeedURL string `yaml:"feed_url"`
		GitHub  struct {
			Token   string `yaml:"token"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"github"`
	} `yaml:"source"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DatabasePath        string `yaml:"database_path"`
	IngestInterval      string `yaml:"ingest_interval"`
	BroadcastCron       string `yaml:"broadcast_cron"`
	RequireKeywordMatch bool   `yaml:"require_keyword_match"`
	LogLevel            string `yaml:"log_level"`
}

// Load reads the YAML file named by COMMITBOT_CONFIG (when set), applies
// environment overrides, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		SourceKind:     SourceGitHub,
		DatabasePath:   "./data/commitbot.db",
		IngestInterval: 30 * time.Second,
		BroadcastCron:  "0 * * * *",
		LogLevel:       "info",
	}

	if path := os.Getenv("COMMITBOT_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if f.Keyword != "" {
		c.Keyword = f.Keyword
	}
	if f.Source.Kind != "" {
		c.SourceKind = SourceKind(f.Source.Kind)
	}
	if f.Source.FeedURL != "" {
		c.FeedURL = f.Source.FeedURL
	}
	if f.Source.GitHub.Token != "" {
		c.GitHubToken = f.Source.GitHub.Token
	}
	if f.Source.GitHub.BaseURL != "" {
		c.GitHubBaseURL = f.Source.GitHub.BaseURL
	}
	if f.Telegram.BotToken != "" {
		c.TelegramBotToken = f.Telegram.BotToken
	}
	if f.Telegram.ChatID != 0 {
		c.TelegramChatID = f.Telegram.ChatID
	}
	if f.DatabasePath != "" {
		c.DatabasePath = f.DatabasePath
	}
	if f.IngestInterval != "" {
		d, err := time.ParseDuration(f.IngestInterval)
		if err != nil {
			return fmt.Errorf("config %s: invalid ingest_interval %q: %w", path, f.IngestInterval, err)
		}
		c.IngestInterval = d
	}
	if f.BroadcastCron != "" {
		c.BroadcastCron = f.BroadcastCron
	}
	if f.RequireKeywordMatch {
		c.RequireKeywordMatch = true
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("KEYWORD"); v != "" {
		c.Keyword = v
	}
	if v := os.Getenv("SOURCE_KIND"); v != "" {
		c.SourceKind = SourceKind(v)
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		c.FeedURL = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv("GITHUB_BASE_URL"); v != "" {
		c.GitHubBaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.TelegramChatID = id
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("INGEST_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid INGEST_INTERVAL %q: %w", v, err)
		}
		c.IngestInterval = d
	}
	if v := os.Getenv("BROADCAST_CRON"); v != "" {
		c.BroadcastCron = v
	}
	if v := os.Getenv("REQUIRE_KEYWORD_MATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid REQUIRE_KEYWORD_MATCH %q: %w", v, err)
		}
		c.RequireKeywordMatch = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.Production = os.Getenv("APP_ENV") == "production"
	return nil
}

func (c *Config) validate() error {
	if c.Keyword == "" {
		return fmt.Errorf("KEYWORD is required")
	}
	switch c.SourceKind {
	case SourceGitHub:
	case SourceFeed:
		if c.FeedURL == "" {
			return fmt.Errorf("FEED_URL is required for the feed source")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.SourceKind)
	}
	if c.Production {
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required in production")
		}
		if c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_CHAT_ID is required in production")
		}
	}
	if c.IngestInterval <= 0 {
		return fmt.Errorf("ingest interval must be positive, got %s", c.IngestInterval)
	}
	if c.BroadcastCron == "" {
		return fmt.Errorf("broadcast schedule must not be empty")
	}
	return nil
}
