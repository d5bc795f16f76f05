package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Leaderboard.DefaultLimit != 10 || cfg.Leaderboard.MaxLimit != 100 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Catalog.SeedFile != "config/catalog.yaml" {
		t.Fatalf("unexpected seed file %q", cfg.Catalog.SeedFile)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
env: production
server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 1h
catalog:
  ttl: 30s
leaderboard:
  default_limit: 5
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("QUIZ_POSTGRES_URL", "postgres://quiz@localhost/quiz")
	t.Setenv("QUIZ_SERVER_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "production" || cfg.Redis.Addr != "localhost:6379" || cfg.Leaderboard.DefaultLimit != 5 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Server.Port != "7070" || cfg.Postgres.URL != "postgres://quiz@localhost/quiz" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if got := TTLDuration(cfg.Catalog.TTL, time.Minute); got != 30*time.Second {
		t.Fatalf("catalog ttl = %v", got)
	}
}

func TestTTLDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: time.Minute},
		{raw: "garbage", want: time.Minute},
		{raw: "90s", want: 90 * time.Second},
	}
	for _, tt := range tests {
		if got := TTLDuration(tt.raw, time.Minute); got != tt.want {
			t.Errorf("TTLDuration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
