// Package config defines the top-level configuration for the value bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by VALUEBOT_* environment variables.
type Config struct {
	Sharp     FeedConfig      `toml:"sharp"`
	Soft      FeedConfig      `toml:"soft"`
	Bookmaker BookmakerConfig `toml:"bookmaker"`
	Engine    EngineConfig    `toml:"engine"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig holds the connection parameters for one odds feed websocket.
type FeedConfig struct {
	URL    string   `toml:"url"`
	ApiKey string   `toml:"api_key"`
	Bookie string   `toml:"bookie"`
	Sports []string `toml:"sports"`
}

// BookmakerConfig holds the target bookmaker API endpoint and the account
// pool used to place bets.
type BookmakerConfig struct {
	BaseURL          string   `toml:"base_url"`
	AccountsPath     string   `toml:"accounts_path"`
	AccountsPassword string   `toml:"accounts_password"`
	SessionTTL       duration `toml:"session_ttl"`
	RefreshInterval  duration `toml:"refresh_interval"`
	RequestTimeout   duration `toml:"request_timeout"`
}

// EngineConfig holds the matching and dispatch parameters.
type EngineConfig struct {
	Sports  []string `toml:"sports"`
	Markets []string `toml:"markets"`

	MinValuePct float64 `toml:"min_value_pct"`
	MaxValuePct float64 `toml:"max_value_pct"`
	MinOdds     float64 `toml:"min_odds"`
	MaxOdds     float64 `toml:"max_odds"`

	MinToStart       duration `toml:"min_to_start"`
	MinToStartTennis duration `toml:"min_to_start_tennis"`
	MaxToStart       duration `toml:"max_to_start"`

	StakePct     float64  `toml:"stake_pct"`
	StaleAfter   duration `toml:"stale_after"`
	DedupTTL     duration `toml:"dedup_ttl"`
	SweepEvery   duration `toml:"sweep_every"`
	SweepMaxAge  duration `toml:"sweep_max_age"`
	PlaceTimeout duration `toml:"place_timeout"`
	DryRun       bool     `toml:"dry_run"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds audit-log archival parameters.
type ArchiveConfig struct {
	RetentionDays int `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Sharp: FeedConfig{
			Bookie: "pinnacle",
			Sports: []string{"football", "basketball", "tennis", "hockey", "handball", "baseball"},
		},
		Soft: FeedConfig{
			Bookie: "duelbits",
			Sports: []string{"football", "basketball", "tennis", "hockey", "handball", "baseball"},
		},
		Bookmaker: BookmakerConfig{
			SessionTTL:      duration{20 * time.Minute},
			RefreshInterval: duration{15 * time.Minute},
			RequestTimeout:  duration{30 * time.Second},
		},
		Engine: EngineConfig{
			Sports:           []string{"football", "basketball", "tennis", "hockey", "baseball"},
			Markets:          []string{"moneyline", "spread", "total", "team_total", "spread_games", "total_games", "total_sets"},
			MinValuePct:      4.0,
			MaxValuePct:      25.0,
			MinOdds:          1.50,
			MaxOdds:          3.40,
			MinToStart:       duration{2 * time.Minute},
			MinToStartTennis: duration{45 * time.Minute},
			MaxToStart:       duration{48 * time.Hour},
			StakePct:         1.5,
			StaleAfter:       duration{30 * time.Second},
			DedupTTL:         duration{72 * time.Hour},
			SweepEvery:       duration{5 * time.Minute},
			SweepMaxAge:      duration{10 * time.Minute},
			PlaceTimeout:     duration{20 * time.Second},
			DryRun:           false,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "valuebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "valuebot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
		},
		Notify: NotifyConfig{
			Events: []string{"value_bet_found", "bet_dispatched", "bet_rejected", "bet_failed", "bet_unknown"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"bet":     true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, bet, archive)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feeds — both sides are required for matching, archive mode runs without them.
	if c.Mode != "archive" {
		if c.Sharp.URL == "" {
			errs = append(errs, "sharp: url must not be empty")
		}
		if c.Soft.URL == "" {
			errs = append(errs, "soft: url must not be empty")
		}
		if c.Sharp.Bookie == "" {
			errs = append(errs, "sharp: bookie must not be empty")
		}
		if c.Soft.Bookie == "" {
			errs = append(errs, "soft: bookie must not be empty")
		}
	}

	// Bookmaker — only the bet mode places real bets.
	if c.Mode == "bet" {
		if c.Bookmaker.BaseURL == "" {
			errs = append(errs, "bookmaker: base_url must not be empty for mode bet")
		}
		if c.Bookmaker.AccountsPath == "" {
			errs = append(errs, "bookmaker: accounts_path must not be empty for mode bet")
		}
		if c.Bookmaker.SessionTTL.Duration <= 0 {
			errs = append(errs, "bookmaker: session_ttl must be > 0")
		}
		if c.Bookmaker.RefreshInterval.Duration <= 0 {
			errs = append(errs, "bookmaker: refresh_interval must be > 0")
		}
	}

	// Engine
	if c.Engine.MinValuePct <= 0 {
		errs = append(errs, "engine: min_value_pct must be > 0")
	}
	if c.Engine.MaxValuePct <= c.Engine.MinValuePct {
		errs = append(errs, "engine: max_value_pct must exceed min_value_pct")
	}
	if c.Engine.MinOdds <= 1.0 {
		errs = append(errs, "engine: min_odds must be > 1.0")
	}
	if c.Engine.MaxOdds <= c.Engine.MinOdds {
		errs = append(errs, "engine: max_odds must exceed min_odds")
	}
	if c.Engine.StakePct <= 0 || c.Engine.StakePct > 100 {
		errs = append(errs, fmt.Sprintf("engine: stake_pct must be in (0, 100], got %g", c.Engine.StakePct))
	}
	if c.Engine.StaleAfter.Duration <= 0 {
		errs = append(errs, "engine: stale_after must be > 0")
	}
	if c.Engine.DedupTTL.Duration <= 0 {
		errs = append(errs, "engine: dedup_ttl must be > 0")
	}
	if c.Engine.MaxToStart.Duration <= c.Engine.MinToStart.Duration {
		errs = append(errs, "engine: max_to_start must exceed min_to_start")
	}
	if len(c.Engine.Sports) == 0 {
		errs = append(errs, "engine: sports must not be empty")
	}
	if len(c.Engine.Markets) == 0 {
		errs = append(errs, "engine: markets must not be empty")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — required only when archival runs.
	if c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
