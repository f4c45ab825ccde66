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
// built-in defaults, applies PROPWATCH_* environment variable overrides, and
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

// applyEnvOverrides reads well-known PROPWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PROPWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PROPWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PROPWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PROPWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PROPWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PROPWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PROPWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PROPWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PROPWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PROPWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PROPWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PROPWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PROPWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PROPWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PROPWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PROPWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PROPWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PROPWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PROPWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "PROPWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PROPWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PROPWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PROPWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PROPWATCH_S3_FORCE_PATH_STYLE")

	// ── Ingest ──
	setStringSlice(&cfg.Ingest.Areas, "PROPWATCH_INGEST_AREAS")
	setDuration(&cfg.Ingest.Interval, "PROPWATCH_INGEST_INTERVAL")
	setInt(&cfg.Ingest.Workers, "PROPWATCH_INGEST_WORKERS")
	setInt(&cfg.Ingest.StaleAfterDays, "PROPWATCH_INGEST_STALE_AFTER_DAYS")
	setDuration(&cfg.Ingest.ReapInterval, "PROPWATCH_INGEST_REAP_INTERVAL")
	setInt(&cfg.Ingest.RetentionDays, "PROPWATCH_INGEST_RETENTION_DAYS")
	setStr(&cfg.Ingest.ArchiveCron, "PROPWATCH_INGEST_ARCHIVE_CRON")

	// ── Metrics ──
	setInt(&cfg.Metrics.DefaultAreaCapacity, "PROPWATCH_METRICS_DEFAULT_AREA_CAPACITY")

	// ── Alerts ──
	setBool(&cfg.Alerts.Enabled, "PROPWATCH_ALERTS_ENABLED")
	setFloat64(&cfg.Alerts.SurgePerDay, "PROPWATCH_ALERTS_SURGE_PER_DAY")
	setFloat64(&cfg.Alerts.SurgePerDayCritical, "PROPWATCH_ALERTS_SURGE_PER_DAY_CRITICAL")
	setFloat64(&cfg.Alerts.DropPct, "PROPWATCH_ALERTS_DROP_PCT")
	setFloat64(&cfg.Alerts.VelocityRatio, "PROPWATCH_ALERTS_VELOCITY_RATIO")
	setFloat64(&cfg.Alerts.HeatIndex, "PROPWATCH_ALERTS_HEAT_INDEX")
	setInt(&cfg.Alerts.FloodPerSource24h, "PROPWATCH_ALERTS_FLOOD_PER_SOURCE_24H")
	setInt(&cfg.Alerts.SuppressionHours, "PROPWATCH_ALERTS_SUPPRESSION_HOURS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PROPWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PROPWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PROPWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PROPWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PROPWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PROPWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PROPWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.AlertTypes, "PROPWATCH_NOTIFY_ALERT_TYPES")

	// ── Top-level ──
	setStr(&cfg.Mode, "PROPWATCH_MODE")
	setStr(&cfg.LogLevel, "PROPWATCH_LOG_LEVEL")
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
