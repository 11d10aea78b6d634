// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to derive an invalid config from the defaults
func mutate(fn func(c *Config)) *Config {
	c := Default()
	fn(c)
	return c
}

// ---- tests ----

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"nil", nil, "nil"},
		{"zero size", mutate(func(c *Config) { c.Layout.Size = 0 }), "layout"},
		{"spans overlap", mutate(func(c *Config) { c.Layout.ReadOnly.End = 6 }), "overlaps"},
		{"span past size", mutate(func(c *Config) { c.Layout.Writable.End = 11 }), "exceeds size"},
		{"writable too wide", mutate(func(c *Config) {
			c.Layout.Size = 200
			c.Layout.Writable = SpanConfig{Start: 5, End: 200}
		}), "max 123"},
		{"no units", mutate(func(c *Config) { c.Units = nil }), "at least one"},
		{"unit zero", mutate(func(c *Config) { c.Units = []int{0} }), "out of range"},
		{"unit too big", mutate(func(c *Config) { c.Units = []int{248} }), "out of range"},
		{"duplicate unit", mutate(func(c *Config) { c.Units = []int{1, 2, 1} }), "duplicate"},
		{"no endpoint", mutate(func(c *Config) { c.Client.Endpoint = " " }), "endpoint"},
		{"empty read", mutate(func(c *Config) { c.Client.Read = SpanConfig{Start: 3, End: 3} }), "empty"},
		{"read past size", mutate(func(c *Config) { c.Client.Read = SpanConfig{Start: 5, End: 12} }), "exceeds layout"},
		{"negative timeout", mutate(func(c *Config) { c.Client.TimeoutMs = -1 }), "timeout_ms"},
		{"zero timeout", mutate(func(c *Config) { c.Client.TimeoutMs = 0 }), "timeout_ms must be > 0"},
		{"zero tick", mutate(func(c *Config) { c.Client.TickMs = 0 }), "tick_ms"},
		{"zero poll interval", mutate(func(c *Config) { c.Client.Poll.IntervalMs = 0 }), "poll.interval_ms"},
		{"zero pause retry", mutate(func(c *Config) { c.Client.Poll.PauseRetryMs = 0 }), "poll.pause_retry_ms"},
		{"zero backoff", mutate(func(c *Config) { c.Client.Backoff.InitialMs = 0 }), "backoff.initial_ms"},
		{"zero queue", mutate(func(c *Config) { c.Client.QueueSize = 0 }), "queue_size"},
		{"read too wide", mutate(func(c *Config) {
			c.Layout.Size = 200
			c.Layout.Writable = SpanConfig{Start: 190, End: 200}
			c.Client.Read = SpanConfig{Start: 0, End: 126}
		}), "max 125"},
		{"negative idle timeout", mutate(func(c *Config) { c.Server.IdleTimeoutMs = -1 }), "idle_timeout_ms"},
		{"negative max clients", mutate(func(c *Config) { c.Server.MaxClients = -1 }), "max_clients"},
		{"backoff inverted", mutate(func(c *Config) { c.Client.Backoff.MaxMs = 500 }), "backoff"},
		{"no listen", mutate(func(c *Config) { c.Server.Listen = "" }), "listen"},
		{"simulate without interval", mutate(func(c *Config) {
			c.Server.Simulate = SimulateConfig{Enabled: true}
		}), "simulate"},
		{"unknown backing", mutate(func(c *Config) { c.Backing.Type = "etcd" }), "unknown type"},
		{"sqlite without path", mutate(func(c *Config) {
			c.Backing.Type = "sqlite"
			c.Backing.SQLite.Path = ""
		}), "sqlite.path"},
		{"valkey without address", mutate(func(c *Config) {
			c.Backing.Type = "valkey"
			c.Backing.Valkey.Address = ""
		}), "valkey.address"},
		{"mqtt without broker", mutate(func(c *Config) { c.MQTT.Enabled = true }), "broker"},
		{"mqtt bad port", mutate(func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker = "localhost"
			c.MQTT.Port = 70000
		}), "port"},
		{"log format", mutate(func(c *Config) { c.Log.Format = "xml" }), "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ServerZeroMeansDefault(t *testing.T) {
	cfg := mutate(func(c *Config) {
		c.Server.IdleTimeoutMs = 0
		c.Server.MaxClients = 0
	})
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_BackingCaseInsensitive(t *testing.T) {
	cfg := mutate(func(c *Config) { c.Backing.Type = "SQLite" })
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := mutate(func(c *Config) {
		c.Client.Endpoint = "tcp://10.0.0.1:502"
		c.Backing.Type = "VALKEY"
	})
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Client.Endpoint != "tcp://10.0.0.1:502" || cfg.Backing.Type != "VALKEY" {
		t.Fatalf("Validate mutated config: %+v", cfg)
	}
}

func TestNormalize(t *testing.T) {
	cfg := mutate(func(c *Config) {
		c.Client.Endpoint = " tcp://10.0.0.1:502 "
		c.Backing.Type = "SQLite"
		c.MQTT.RootTopic = "/plant/line1/"
		c.Log.Level = "DEBUG"
		c.Log.Format = "JSON"
	})
	Normalize(cfg)

	if cfg.Client.Endpoint != "10.0.0.1:502" {
		t.Errorf("endpoint: got=%q", cfg.Client.Endpoint)
	}
	if cfg.Backing.Type != BackingSQLite {
		t.Errorf("backing: got=%q", cfg.Backing.Type)
	}
	if cfg.MQTT.RootTopic != "plant/line1" {
		t.Errorf("root topic: got=%q", cfg.MQTT.RootTopic)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log: got=%+v", cfg.Log)
	}

	cfg = mutate(func(c *Config) {
		c.Backing.Type = ""
		c.MQTT.RootTopic = "/"
	})
	Normalize(cfg)
	if cfg.Backing.Type != BackingNone || cfg.MQTT.RootTopic != "regsync" {
		t.Errorf("empty values not defaulted: %+v %+v", cfg.Backing, cfg.MQTT)
	}

	Normalize(nil)
}
