package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != "file" {
		t.Fatalf("expected file backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Watchdog.IntervalSeconds != 60 || cfg.Watchdog.ThresholdSeconds != 600 {
		t.Fatalf("unexpected watchdog defaults %+v", cfg.Watchdog)
	}
	if cfg.Routes["host"] != "/anfitrion" {
		t.Fatalf("expected default host route, got %q", cfg.Routes["host"])
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
api:
  base_url: https://api.example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedBackend(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
api:
  base_url: https://api.example.com
storage:
  backend: etcd
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported storage.backend") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLoadRejectsInvalidAPIBaseURL(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
api:
  base_url: example.com
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "api.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestLoadRejectsBadRoute(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
api:
  base_url: https://api.example.com
routes:
  keeper: keepers
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "routes") {
		t.Fatalf("expected routes error, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WAYFARE_STATE", "/var/lib/wayfare")
	path := writeConfig(t, `
config_version: 1
api:
  base_url: https://api.example.com/v2
  timeout_seconds: 5
storage:
  backend: sqlite
  sqlite_path: $WAYFARE_STATE/kv.db
  keys:
    booking_id: bid
watchdog:
  interval_seconds: 30
  threshold_seconds: 900
  cancel_reason: checkout abandoned
routes:
  host: /hosts
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.SQLitePath != "/var/lib/wayfare/kv.db" {
		t.Fatalf("expected expanded sqlite path, got %q", cfg.Storage.SQLitePath)
	}
	keys := cfg.PendingKeys()
	if keys.BookingID != "bid" || keys.CreatedAt != "pendingBookingCreatedAt" {
		t.Fatalf("unexpected keys %+v", keys)
	}
	wd := cfg.WatchdogSettings()
	if wd.Interval != 30*time.Second || wd.Threshold != 15*time.Minute || wd.Reason != "checkout abandoned" {
		t.Fatalf("unexpected watchdog settings %+v", wd)
	}
	if api := cfg.APIClient(); api.Timeout != 5*time.Second || api.BaseURL != "https://api.example.com/v2" {
		t.Fatalf("unexpected api settings %+v", api)
	}
	table, err := cfg.RouteTable()
	if err != nil {
		t.Fatalf("route table: %v", err)
	}
	if table.Targets["host"] != "/hosts" || table.Targets["agent"] != "/agent" {
		t.Fatalf("unexpected routes %+v", table.Targets)
	}
	if kv := cfg.KVStore(); kv.Backend != "sqlite" {
		t.Fatalf("unexpected kv config %+v", kv)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
