package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTempConfig(t, `
mode = "ingest"
log_level = "debug"

[postgres]
host = "db.internal"
password = "hunter2"

[ingest]
interval = "15m"
areas = ["jvc", "business-bay"]

[[ingest.sources]]
name = "bayut"
feed_url = "https://feeds.local/bayut"
enabled = true

[metrics]
default_area_capacity = 500

[metrics.area_capacities]
jvc = 3000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "ingest" {
		t.Errorf("Mode = %q, want ingest", cfg.Mode)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q, want db.internal", cfg.Postgres.Host)
	}
	// Untouched fields keep their defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %d, want default 5432", cfg.Postgres.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
	if cfg.Ingest.Interval.Duration != 15*time.Minute {
		t.Errorf("Ingest.Interval = %s, want 15m", cfg.Ingest.Interval.Duration)
	}
	if len(cfg.Ingest.Sources) != 1 || cfg.Ingest.Sources[0].Name != "bayut" {
		t.Errorf("Ingest.Sources = %+v, want single bayut entry", cfg.Ingest.Sources)
	}
	if cfg.Metrics.AreaCapacities["jvc"] != 3000 {
		t.Errorf("AreaCapacities[jvc] = %d, want 3000", cfg.Metrics.AreaCapacities["jvc"])
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
[postgres]
host = "from-file"
`)

	t.Setenv("PROPWATCH_POSTGRES_HOST", "from-env")
	t.Setenv("PROPWATCH_SERVER_API_KEY", "sekret")
	t.Setenv("PROPWATCH_INGEST_AREAS", "jvc, palm-jumeirah")
	t.Setenv("PROPWATCH_INGEST_INTERVAL", "10m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Postgres.Host != "from-env" {
		t.Errorf("Postgres.Host = %q, want env override", cfg.Postgres.Host)
	}
	if cfg.Server.APIKey != "sekret" {
		t.Errorf("Server.APIKey = %q, want sekret", cfg.Server.APIKey)
	}
	if len(cfg.Ingest.Areas) != 2 || cfg.Ingest.Areas[1] != "palm-jumeirah" {
		t.Errorf("Ingest.Areas = %v, want [jvc palm-jumeirah]", cfg.Ingest.Areas)
	}
	if cfg.Ingest.Interval.Duration != 10*time.Minute {
		t.Errorf("Ingest.Interval = %s, want 10m", cfg.Ingest.Interval.Duration)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Redis.Addr = ""
	cfg.Alerts.DropPct = 2 // must be negative
	cfg.Ingest.Areas = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"unknown mode", "redis: addr", "drop_pct", "at least one area"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateIngestRequirementsSkippedInServerMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	cfg.Ingest.Areas = nil
	cfg.Ingest.Sources = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("server mode should not require ingest config, got: %v", err)
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "sekret"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)
	if red.Postgres.Password != "***" {
		t.Errorf("Postgres.Password = %q, want ***", red.Postgres.Password)
	}
	if red.Server.APIKey != "***" {
		t.Errorf("Server.APIKey = %q, want ***", red.Server.APIKey)
	}
	if red.Notify.TelegramToken != "***" {
		t.Errorf("TelegramToken = %q, want ***", red.Notify.TelegramToken)
	}
	// The original is untouched.
	if cfg.Postgres.Password != "hunter2" {
		t.Error("RedactedConfig mutated the original")
	}
}
