// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration: units 1,2,3 with 10 registers
// each (0-4 read-only, 5-9 writable), port 15050, 3s polling.
func Default() *Config {
	return &Config{
		Layout: LayoutConfig{
			Size:     10,
			ReadOnly: SpanConfig{Start: 0, End: 5},
			Writable: SpanConfig{Start: 5, End: 10},
		},
		Units: []int{1, 2, 3},
		Client: ClientConfig{
			Endpoint:  "127.0.0.1:15050",
			TimeoutMs: 5000,
			TickMs:    1000,
			Backoff:   BackoffConfig{InitialMs: 1000, MaxMs: 30000},
			Poll:      PollConfig{IntervalMs: 3000, PauseRetryMs: 1000},
			Read:      SpanConfig{Start: 0, End: 5},
			QueueSize: 16,
		},
		Server: ServerConfig{
			Listen:        ":15050",
			StrictFraming: true,
			Simulate:      SimulateConfig{IntervalMs: 1000},
		},
		Backing: BackingConfig{
			Type:   BackingNone,
			SQLite: SQLiteConfig{Path: "regsync.db"},
			Valkey: ValkeyConfig{
				Address:   "localhost:6379",
				KeyPrefix: "regsync",
				TimeoutMs: 2000,
			},
		},
		MQTT: MQTTConfig{
			Port:      1883,
			ClientID:  "regsync",
			RootTopic: "regsync",
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
