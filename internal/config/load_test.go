// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regsync.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
units: [4, 5]
client:
  endpoint: 192.168.1.10:502
  poll:
    interval_ms: 500
backing:
  type: sqlite
  sqlite:
    path: /var/lib/regsync.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !reflect.DeepEqual(cfg.Units, []int{4, 5}) {
		t.Errorf("units: got=%v", cfg.Units)
	}
	if cfg.Client.Endpoint != "192.168.1.10:502" {
		t.Errorf("endpoint: got=%q", cfg.Client.Endpoint)
	}
	if cfg.Client.Poll.IntervalMs != 500 {
		t.Errorf("interval: got=%d", cfg.Client.Poll.IntervalMs)
	}
	// untouched keys keep their defaults
	if cfg.Client.Poll.PauseRetryMs != 1000 || cfg.Client.TimeoutMs != 5000 {
		t.Errorf("defaults lost: %+v", cfg.Client)
	}
	if cfg.Layout.Size != 10 || cfg.Server.Listen != ":15050" {
		t.Errorf("defaults lost: layout=%+v listen=%q", cfg.Layout, cfg.Server.Listen)
	}
	if cfg.Backing.Type != "sqlite" || cfg.Backing.SQLite.Path != "/var/lib/regsync.db" {
		t.Errorf("backing: got=%+v", cfg.Backing)
	}
	if !reflect.DeepEqual(cfg.UnitIDs(), []uint8{4, 5}) {
		t.Errorf("unit ids: got=%v", cfg.UnitIDs())
	}
}

func TestLoad_EmptyPathAndFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("empty path should return defaults")
	}

	cfg, err = Load(writeFile(t, ""))
	if err != nil {
		t.Fatalf("load empty file: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("empty file should return defaults")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file: expected error")
	}
	if _, err := Load(writeFile(t, "clinet:\n  endpoint: x\n")); err == nil {
		t.Errorf("unknown key: expected error")
	}
	if _, err := Load(writeFile(t, "units: [1, 2\n")); err == nil {
		t.Errorf("bad yaml: expected error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REGSYNC_ENDPOINT", "10.1.1.1:502")
	t.Setenv("REGSYNC_LISTEN", ":1502")
	t.Setenv("REGSYNC_UNITS", "7, 8")
	t.Setenv("REGSYNC_POLL_INTERVAL_MS", "250")
	t.Setenv("REGSYNC_MQTT_ENABLED", "true")
	t.Setenv("REGSYNC_BACKING", "valkey")

	cfg := Default()
	if err := ApplyEnv(cfg, map[string]bool{"listen": true}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Client.Endpoint != "10.1.1.1:502" {
		t.Errorf("endpoint: got=%q", cfg.Client.Endpoint)
	}
	if cfg.Server.Listen != ":15050" {
		t.Errorf("explicit flag must win, got listen=%q", cfg.Server.Listen)
	}
	if !reflect.DeepEqual(cfg.Units, []int{7, 8}) {
		t.Errorf("units: got=%v", cfg.Units)
	}
	if cfg.Client.Poll.IntervalMs != 250 || !cfg.MQTT.Enabled || cfg.Backing.Type != "valkey" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	for key, val := range map[string]string{
		"REGSYNC_POLL_INTERVAL_MS": "soon",
		"REGSYNC_MQTT_ENABLED":     "maybe",
		"REGSYNC_UNITS":            "1,x",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if err := ApplyEnv(Default(), nil); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}
