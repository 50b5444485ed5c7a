package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db?_foreign_keys=on")
	t.Setenv("AUTH_RATE_LIMIT_PER_MINUTE", "30")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
httpPort: "8081"
logLevel: "debug"
database:
  driver: "sqlite3"
  url: "file:ignored.db"
jwtSecret: "a-secret-that-is-long-enough-for-hs256-use"
jwtTTL: "2h"
redisAddr: "localhost:6379"
notifier: "redis"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath, discardLogger())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != "8081" || cfg.GRPCPort != "9090" {
		t.Fatalf("ports = %q/%q", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Database.URL != "file:test.db?_foreign_keys=on" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if ttl, _ := cfg.TokenTTL(); ttl != 2*time.Hour {
		t.Fatalf("ttl = %v, want 2h", ttl)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("level = %v", cfg.SlogLevel())
	}
	if !cfg.RateLimitEnabled() || cfg.AuthRateLimitPerMinute != 30 {
		t.Fatalf("rate limit = %d", cfg.AuthRateLimitPerMinute)
	}
	if cfg.NotifyStream != "yamdb:mail:outbox" || cfg.JWTIssuer != "yamdb" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	cfg, err := Load("", discardLogger())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.JWTSecret == "" || cfg.Notifier != "log" || cfg.RateLimitEnabled() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if ttl, _ := cfg.TokenTTL(); ttl != 24*time.Hour {
		t.Fatalf("ttl = %v, want 24h", ttl)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":     {"DATABASE_DRIVER": "oracle"},
		"ttl":        {"DATABASE_DRIVER": "memory", "JWT_TTL": "forever"},
		"notifier":   {"DATABASE_DRIVER": "memory", "NOTIFIER": "redis"},
		"rate limit": {"DATABASE_DRIVER": "memory", "AUTH_RATE_LIMIT_PER_MINUTE": "many"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load("", discardLogger()); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), discardLogger()); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
