// Package config defines the top-level configuration for the listing
// tracker and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PROPWATCH_* environment
// variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Ingest   IngestConfig   `toml:"ingest"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Alerts   AlertsConfig   `toml:"alerts"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
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

// S3Config holds S3-compatible object storage parameters for cold archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SourceConfig describes one portal feed to collect from.
type SourceConfig struct {
	Name    string `toml:"name"`     // "bayut", "propertyfinder", "dubizzle"
	FeedURL string `toml:"feed_url"` // search endpoint root
	Enabled bool   `toml:"enabled"`
}

// IngestConfig holds collection pipeline parameters.
type IngestConfig struct {
	Sources        []SourceConfig `toml:"sources"`
	Areas          []string       `toml:"areas"`
	Interval       duration       `toml:"interval"`
	Workers        int            `toml:"workers"`
	StaleAfterDays int            `toml:"stale_after_days"`
	ReapInterval   duration       `toml:"reap_interval"`
	RetentionDays  int            `toml:"retention_days"`
	ArchiveCron    string         `toml:"archive_cron"`
}

// MetricsConfig holds market metric computation parameters.
type MetricsConfig struct {
	DefaultAreaCapacity int            `toml:"default_area_capacity"`
	AreaCapacities      map[string]int `toml:"area_capacities"`
}

// AlertsConfig holds alert rule thresholds.
type AlertsConfig struct {
	Enabled             bool    `toml:"enabled"`
	SurgePerDay         float64 `toml:"surge_per_day"`
	SurgePerDayCritical float64 `toml:"surge_per_day_critical"`
	DropPct             float64 `toml:"drop_pct"`
	VelocityRatio       float64 `toml:"velocity_ratio"`
	HeatIndex           float64 `toml:"heat_index"`
	FloodPerSource24h   int     `toml:"flood_per_source_24h"`
	SuppressionHours    int     `toml:"suppression_hours"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"` // empty disables authentication
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	AlertTypes        []string `toml:"alert_types"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "propwatch",
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
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "propwatch-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Ingest: IngestConfig{
			Sources: []SourceConfig{
				{Name: "bayut", FeedURL: "https://api.bayut.example/v1", Enabled: true},
				{Name: "propertyfinder", FeedURL: "https://api.propertyfinder.example/v2", Enabled: true},
				{Name: "dubizzle", FeedURL: "https://api.dubizzle.example/v1", Enabled: false},
			},
			Areas: []string{
				"dubai-marina", "downtown-dubai", "jvc", "business-bay", "palm-jumeirah",
			},
			Interval:       duration{30 * time.Minute},
			Workers:        8,
			StaleAfterDays: 14,
			ReapInterval:   duration{6 * time.Hour},
			RetentionDays:  90,
			ArchiveCron:    "0 3 1 * *",
		},
		Metrics: MetricsConfig{
			DefaultAreaCapacity: 2000,
			AreaCapacities:      map[string]int{},
		},
		Alerts: AlertsConfig{
			Enabled:             true,
			SurgePerDay:         5,
			SurgePerDayCritical: 8,
			DropPct:             -3,
			VelocityRatio:       1.5,
			HeatIndex:           75,
			FloodPerSource24h:   30,
			SuppressionHours:    24,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			AlertTypes: []string{},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"ingest": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources enumerates the supported portal providers.
var validSources = map[string]bool{
	"bayut":          true,
	"propertyfinder": true,
	"dubizzle":       true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: ingest, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
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

	// S3 — only checked when archival is on.
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Ingest — skipped only in server mode, so an unrecognized mode still
	// gets the full report.
	needsIngest := c.Mode != "server"
	if needsIngest {
		enabled := 0
		for i, src := range c.Ingest.Sources {
			if !validSources[src.Name] {
				errs = append(errs, fmt.Sprintf("ingest: sources[%d]: unknown provider %q (valid: bayut, propertyfinder, dubizzle)", i, src.Name))
			}
			if src.Enabled {
				enabled++
				if src.FeedURL == "" {
					errs = append(errs, fmt.Sprintf("ingest: sources[%d] (%s): feed_url must not be empty when enabled", i, src.Name))
				}
			}
		}
		if enabled == 0 {
			errs = append(errs, "ingest: at least one source must be enabled for mode "+c.Mode)
		}
		if len(c.Ingest.Areas) == 0 {
			errs = append(errs, "ingest: at least one area must be configured for mode "+c.Mode)
		}
		if c.Ingest.Interval.Duration < time.Minute {
			errs = append(errs, "ingest: interval must be at least 1m")
		}
		if c.Ingest.Workers < 1 {
			errs = append(errs, "ingest: workers must be >= 1")
		}
		if c.Ingest.StaleAfterDays < 1 {
			errs = append(errs, "ingest: stale_after_days must be >= 1")
		}
		if c.Ingest.RetentionDays < c.Ingest.StaleAfterDays {
			errs = append(errs, "ingest: retention_days must not be less than stale_after_days")
		}
	}

	// Metrics
	if c.Metrics.DefaultAreaCapacity < 0 {
		errs = append(errs, "metrics: default_area_capacity must be >= 0")
	}
	for area, capacity := range c.Metrics.AreaCapacities {
		if capacity < 0 {
			errs = append(errs, fmt.Sprintf("metrics: area_capacities[%s] must be >= 0", area))
		}
	}

	// Alerts
	if c.Alerts.Enabled {
		if c.Alerts.SurgePerDay <= 0 {
			errs = append(errs, "alerts: surge_per_day must be > 0 when enabled")
		}
		if c.Alerts.SurgePerDayCritical < c.Alerts.SurgePerDay {
			errs = append(errs, "alerts: surge_per_day_critical must not be less than surge_per_day")
		}
		if c.Alerts.DropPct >= 0 {
			errs = append(errs, "alerts: drop_pct must be negative")
		}
		if c.Alerts.VelocityRatio <= 1 {
			errs = append(errs, "alerts: velocity_ratio must be > 1")
		}
		if c.Alerts.FloodPerSource24h < 1 {
			errs = append(errs, "alerts: flood_per_source_24h must be >= 1")
		}
		if c.Alerts.SuppressionHours < 1 {
			errs = append(errs, "alerts: suppression_hours must be >= 1")
		}
	}

	// Notify — Telegram credentials come in pairs.
	tgToken := c.Notify.TelegramToken != ""
	tgChat := c.Notify.TelegramChatID != ""
	if tgToken != tgChat {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
