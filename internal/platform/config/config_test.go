package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/reviewflow",
		TokenTTL:           time.Hour,
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 60,
		SweepInterval:      time.Hour,
		LockTTL:            10 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "small body limit", mutate: func(c *Config) { c.MaxBodyBytes = 10 }, wantErr: true},
		{name: "short lock ttl", mutate: func(c *Config) { c.LockTTL = time.Millisecond }, wantErr: true},
		{name: "email without host", mutate: func(c *Config) { c.EmailEnabled = true }, wantErr: true},
		{name: "production weak secret", mutate: func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "short"
			c.RedisURL = "redis://localhost:6379/0"
		}, wantErr: true},
		{name: "production without redis", mutate: func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "0123456789abcdef0123456789abcdef"
			c.RunSeed = false
		}, wantErr: true},
		{name: "production ready", mutate: func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "0123456789abcdef0123456789abcdef"
			c.RunSeed = false
			c.RedisURL = "redis://localhost:6379/0"
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/reviewflow")
	t.Setenv("MILESTONE_SWEEP_INTERVAL", "15m")
	t.Setenv("RUN_SEED", "false")
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg := Load()
	if cfg.DatabaseURL != "postgres://db/reviewflow" {
		t.Fatalf("expected database url from env, got %q", cfg.DatabaseURL)
	}
	if cfg.SweepInterval != 15*time.Minute {
		t.Fatalf("expected 15m sweep interval, got %s", cfg.SweepInterval)
	}
	if cfg.RunSeed {
		t.Fatalf("expected seed disabled")
	}
	if cfg.SMTPPort != 587 {
		t.Fatalf("expected fallback smtp port, got %d", cfg.SMTPPort)
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CATALOG_PATH=/etc/catalog.yaml\nAPP_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("APP_ADDR", ":7000")
	t.Setenv("CATALOG_PATH", "")
	os.Unsetenv("CATALOG_PATH")

	LoadDotEnv()
	t.Cleanup(func() { os.Unsetenv("CATALOG_PATH") })

	cfg := Load()
	if cfg.CatalogPath != "/etc/catalog.yaml" {
		t.Fatalf("expected catalog path from .env, got %q", cfg.CatalogPath)
	}
	if cfg.Addr != ":7000" {
		t.Fatalf("expected environment to win, got %q", cfg.Addr)
	}
}
