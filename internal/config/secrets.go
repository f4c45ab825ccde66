package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

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

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Notify.AlertTypes != nil {
		out.Notify.AlertTypes = make([]string, len(cfg.Notify.AlertTypes))
		copy(out.Notify.AlertTypes, cfg.Notify.AlertTypes)
	}
	if cfg.Ingest.Sources != nil {
		out.Ingest.Sources = make([]SourceConfig, len(cfg.Ingest.Sources))
		copy(out.Ingest.Sources, cfg.Ingest.Sources)
	}
	if cfg.Ingest.Areas != nil {
		out.Ingest.Areas = make([]string, len(cfg.Ingest.Areas))
		copy(out.Ingest.Areas, cfg.Ingest.Areas)
	}
	if cfg.Metrics.AreaCapacities != nil {
		out.Metrics.AreaCapacities = make(map[string]int, len(cfg.Metrics.AreaCapacities))
		for k, v := range cfg.Metrics.AreaCapacities {
			out.Metrics.AreaCapacities[k] = v
		}
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
