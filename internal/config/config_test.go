package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
logLevel: debug
databaseURL: "postgres://localhost/convertbox"
baseURL: "https://convertbox.app"
bcryptCost: 12
usageRateLimitPerMinute: 90
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.BcryptCost != 12 || cfg.UsageRateLimitPerMinute != 90 {
		t.Fatalf("unexpected numeric fields: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/convertbox"
baseURL: "https://convertbox.app"
`)
	t.Setenv("CONVERTBOX_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://db.internal/convertbox")
	t.Setenv("CONVERTBOX_BCRYPT_COST", "10")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("env port override ignored: %q", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://db.internal/convertbox" {
		t.Fatalf("env database override ignored: %q", cfg.DatabaseURL)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("env bcrypt cost override ignored: %d", cfg.BcryptCost)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
logLevel: info
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing port")
	}

	path = writeConfig(t, `
port: "8080"
baseURL: "https://convertbox.app"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing databaseURL")
	}

	path = writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/convertbox"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing baseURL")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
