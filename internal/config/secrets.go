package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Feeds
	out.Sharp = cfg.Sharp
	redact(&out.Sharp.ApiKey)
	out.Soft = cfg.Soft
	redact(&out.Soft.ApiKey)

	// Bookmaker
	out.Bookmaker = cfg.Bookmaker
	redact(&out.Bookmaker.AccountsPassword)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Sharp.Sports != nil {
		out.Sharp.Sports = make([]string, len(cfg.Sharp.Sports))
		copy(out.Sharp.Sports, cfg.Sharp.Sports)
	}
	if cfg.Soft.Sports != nil {
		out.Soft.Sports = make([]string, len(cfg.Soft.Sports))
		copy(out.Soft.Sports, cfg.Soft.Sports)
	}
	if cfg.Engine.Sports != nil {
		out.Engine.Sports = make([]string, len(cfg.Engine.Sports))
		copy(out.Engine.Sports, cfg.Engine.Sports)
	}
	if cfg.Engine.Markets != nil {
		out.Engine.Markets = make([]string, len(cfg.Engine.Markets))
		copy(out.Engine.Markets, cfg.Engine.Markets)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
