package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FOLIO_ADMIN_JWT_SECRET", "test-secret")
	t.Setenv("FOLIO_STORAGE_PATH", filepath.Join(dir, "data", "folio.bolt"))
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := setupTestEnv(t)

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.AdminPort != 8080 {
		t.Errorf("AdminPort = %d, want 8080", cfg.Server.AdminPort)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("Storage.Type = %q, want bolt", cfg.Storage.Type)
	}
	if cfg.Session.AbsoluteTimeout != "2h" {
		t.Errorf("AbsoluteTimeout = %q, want 2h", cfg.Session.AbsoluteTimeout)
	}
	if d := Duration(cfg.Session.InactivityTimeout, time.Hour); d != 0 {
		t.Errorf("inactivity timeout = %v, want disabled", d)
	}
	absolute := Duration(cfg.Session.AbsoluteTimeout, 0)
	if tokenLifetime := Duration(cfg.Admin.TokenExpiration, 0); tokenLifetime <= absolute {
		t.Errorf("token expiration %v must outlast the absolute timeout %v", tokenLifetime, absolute)
	}
	if cfg.Ephemeral.Capacity != 128 {
		t.Errorf("Ephemeral.Capacity = %d, want 128", cfg.Ephemeral.Capacity)
	}

	// The bolt directory is created during validation.
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("storage directory not created: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := setupTestEnv(t)
	path := writeConfig(t, dir, `
server:
  admin_port: 8443
session:
  absolute_timeout: 30m
  check_interval: 15s
storage:
  type: redis
  redis:
    host: redis.internal
    key_prefix: "portfolio:"
admin:
  allowed_origins:
    - https://example.org
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.AdminPort != 8443 {
		t.Errorf("AdminPort = %d, want 8443", cfg.Server.AdminPort)
	}
	if got := Duration(cfg.Session.AbsoluteTimeout, 0); got != 30*time.Minute {
		t.Errorf("AbsoluteTimeout = %v, want 30m", got)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "redis.internal" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Storage.Redis.KeyPrefix != "portfolio:" {
		t.Errorf("KeyPrefix = %q", cfg.Storage.Redis.KeyPrefix)
	}
	if len(cfg.Admin.AllowedOrigins) != 1 || cfg.Admin.AllowedOrigins[0] != "https://example.org" {
		t.Errorf("AllowedOrigins = %v", cfg.Admin.AllowedOrigins)
	}
	// Untouched keys keep their defaults.
	if cfg.Session.ActivityThrottle != "30s" {
		t.Errorf("ActivityThrottle = %q, want 30s", cfg.Session.ActivityThrottle)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	dir := setupTestEnv(t)
	t.Setenv("FOLIO_SESSION_ABSOLUTE_TIMEOUT", "45m")

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.AbsoluteTimeout != "45m" {
		t.Errorf("AbsoluteTimeout = %q, want 45m", cfg.Session.AbsoluteTimeout)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad admin port", "server:\n  admin_port: 70000\n"},
		{"bad duration", "session:\n  absolute_timeout: soon\n"},
		{"unknown storage", "storage:\n  type: etcd\n"},
		{"empty redis host", "storage:\n  type: redis\n  redis:\n    host: \"\"\n"},
		{"zero capacity", "ephemeral:\n  capacity: 0\n"},
		{"zero login rate", "admin:\n  login_rate_limit: 0\n"},
		{"zero absolute timeout", "session:\n  absolute_timeout: \"0\"\n"},
		{"token expires with session", "admin:\n  token_expiration: 2h\n"},
		{"token expires before session", "session:\n  absolute_timeout: 13h\n"},
		{"token expiration disabled", "admin:\n  token_expiration: \"0\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestEnv(t)
			if _, err := Load(writeConfig(t, dir, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	dir := setupTestEnv(t)
	t.Setenv("FOLIO_ADMIN_JWT_SECRET", "")

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error without a jwt secret")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := setupTestEnv(t)
	if _, err := Load(writeConfig(t, dir, "session: [unterminated\n")); err == nil {
		t.Error("expected parse error")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{" 90s ", 90 * time.Second, false},
		{"2h", 2 * time.Hour, false},
		{"ten minutes", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := Duration("bogus", time.Minute); got != time.Minute {
		t.Errorf("Duration fallback = %v, want 1m", got)
	}
}

func TestKeysIncludeKeysWithoutValues(t *testing.T) {
	keys := make(map[string]bool)
	for _, k := range Keys() {
		keys[k] = true
	}
	for _, want := range []string{"admin.jwt_secret", "storage.redis.password", "session.inactivity_timeout"} {
		if !keys[want] {
			t.Errorf("Keys() missing %s", want)
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Session.CheckInterval != "60s" {
		t.Errorf("CheckInterval = %q, want 60s", cfg.Session.CheckInterval)
	}
	if cfg.Admin.LoginBurst != 5 {
		t.Errorf("LoginBurst = %d, want 5", cfg.Admin.LoginBurst)
	}
}
