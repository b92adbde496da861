package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VALUEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VALUEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feeds ──
	setStr(&cfg.Sharp.URL, "VALUEBOT_SHARP_URL")
	setStr(&cfg.Sharp.ApiKey, "VALUEBOT_SHARP_API_KEY")
	setStr(&cfg.Sharp.Bookie, "VALUEBOT_SHARP_BOOKIE")
	setStringSlice(&cfg.Sharp.Sports, "VALUEBOT_SHARP_SPORTS")
	setStr(&cfg.Soft.URL, "VALUEBOT_SOFT_URL")
	setStr(&cfg.Soft.ApiKey, "VALUEBOT_SOFT_API_KEY")
	setStr(&cfg.Soft.Bookie, "VALUEBOT_SOFT_BOOKIE")
	setStringSlice(&cfg.Soft.Sports, "VALUEBOT_SOFT_SPORTS")

	// ── Bookmaker ──
	setStr(&cfg.Bookmaker.BaseURL, "VALUEBOT_BOOKMAKER_BASE_URL")
	setStr(&cfg.Bookmaker.AccountsPath, "VALUEBOT_BOOKMAKER_ACCOUNTS_PATH")
	setStr(&cfg.Bookmaker.AccountsPassword, "VALUEBOT_BOOKMAKER_ACCOUNTS_PASSWORD")
	setDuration(&cfg.Bookmaker.SessionTTL, "VALUEBOT_BOOKMAKER_SESSION_TTL")
	setDuration(&cfg.Bookmaker.RefreshInterval, "VALUEBOT_BOOKMAKER_REFRESH_INTERVAL")
	setDuration(&cfg.Bookmaker.RequestTimeout, "VALUEBOT_BOOKMAKER_REQUEST_TIMEOUT")

	// ── Engine ──
	setStringSlice(&cfg.Engine.Sports, "VALUEBOT_ENGINE_SPORTS")
	setStringSlice(&cfg.Engine.Markets, "VALUEBOT_ENGINE_MARKETS")
	setFloat64(&cfg.Engine.MinValuePct, "VALUEBOT_ENGINE_MIN_VALUE_PCT")
	setFloat64(&cfg.Engine.MaxValuePct, "VALUEBOT_ENGINE_MAX_VALUE_PCT")
	setFloat64(&cfg.Engine.MinOdds, "VALUEBOT_ENGINE_MIN_ODDS")
	setFloat64(&cfg.Engine.MaxOdds, "VALUEBOT_ENGINE_MAX_ODDS")
	setDuration(&cfg.Engine.MinToStart, "VALUEBOT_ENGINE_MIN_TO_START")
	setDuration(&cfg.Engine.MinToStartTennis, "VALUEBOT_ENGINE_MIN_TO_START_TENNIS")
	setDuration(&cfg.Engine.MaxToStart, "VALUEBOT_ENGINE_MAX_TO_START")
	setFloat64(&cfg.Engine.StakePct, "VALUEBOT_ENGINE_STAKE_PCT")
	setDuration(&cfg.Engine.StaleAfter, "VALUEBOT_ENGINE_STALE_AFTER")
	setDuration(&cfg.Engine.DedupTTL, "VALUEBOT_ENGINE_DEDUP_TTL")
	setDuration(&cfg.Engine.SweepEvery, "VALUEBOT_ENGINE_SWEEP_EVERY")
	setDuration(&cfg.Engine.SweepMaxAge, "VALUEBOT_ENGINE_SWEEP_MAX_AGE")
	setDuration(&cfg.Engine.PlaceTimeout, "VALUEBOT_ENGINE_PLACE_TIMEOUT")
	setBool(&cfg.Engine.DryRun, "VALUEBOT_ENGINE_DRY_RUN")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "VALUEBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "VALUEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VALUEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VALUEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VALUEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VALUEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VALUEBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VALUEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VALUEBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VALUEBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VALUEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VALUEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VALUEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VALUEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VALUEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VALUEBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "VALUEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VALUEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "VALUEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VALUEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VALUEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VALUEBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VALUEBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "VALUEBOT_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VALUEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VALUEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VALUEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VALUEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VALUEBOT_MODE")
	setStr(&cfg.LogLevel, "VALUEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
