// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-regsync/internal/codec"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// LAYOUT
	// ------------------------------------------------------------

	layout := cfg.Layout.Layout()
	if err := layout.Check(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if n := layout.Writable.Len(); n > codec.MaxWriteQuantity {
		return fmt.Errorf("layout: writable span %v has %d registers, max %d", layout.Writable, n, codec.MaxWriteQuantity)
	}

	// ------------------------------------------------------------
	// UNITS
	// ------------------------------------------------------------

	if len(cfg.Units) == 0 {
		return fmt.Errorf("units: at least one unit is required")
	}
	seen := make(map[int]bool, len(cfg.Units))
	for _, u := range cfg.Units {
		if u < 1 || u > 247 {
			return fmt.Errorf("units: unit id %d out of range 1..247", u)
		}
		if seen[u] {
			return fmt.Errorf("units: duplicate unit id %d", u)
		}
		seen[u] = true
	}

	// ------------------------------------------------------------
	// CLIENT
	// ------------------------------------------------------------

	c := cfg.Client
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("client: endpoint is required")
	}
	read := c.Read.Span()
	if read.Len() == 0 {
		return fmt.Errorf("client: read span %d-%d is empty", c.Read.Start, c.Read.End)
	}
	if read.Len() > codec.MaxReadQuantity {
		return fmt.Errorf("client: read span %v has %d registers, max %d", read, read.Len(), codec.MaxReadQuantity)
	}
	if int(read.End) > int(layout.Size) {
		return fmt.Errorf("client: read span %v exceeds layout size %d", read, layout.Size)
	}
	for name, v := range map[string]int{
		"timeout_ms":          c.TimeoutMs,
		"tick_ms":             c.TickMs,
		"backoff.initial_ms":  c.Backoff.InitialMs,
		"backoff.max_ms":      c.Backoff.MaxMs,
		"poll.interval_ms":    c.Poll.IntervalMs,
		"poll.pause_retry_ms": c.Poll.PauseRetryMs,
		"queue_size":          c.QueueSize,
	} {
		if v <= 0 {
			return fmt.Errorf("client: %s must be > 0 (got %d)", name, v)
		}
	}
	if c.Backoff.MaxMs < c.Backoff.InitialMs {
		return fmt.Errorf("client: backoff.max_ms %d < backoff.initial_ms %d", c.Backoff.MaxMs, c.Backoff.InitialMs)
	}

	// ------------------------------------------------------------
	// SERVER
	// ------------------------------------------------------------

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return fmt.Errorf("server: listen address is required")
	}
	if cfg.Server.IdleTimeoutMs < 0 {
		return fmt.Errorf("server: idle_timeout_ms must be >= 0 (got %d)", cfg.Server.IdleTimeoutMs)
	}
	if cfg.Server.MaxClients < 0 {
		return fmt.Errorf("server: max_clients must be >= 0 (got %d)", cfg.Server.MaxClients)
	}
	if cfg.Server.Simulate.Enabled && cfg.Server.Simulate.IntervalMs <= 0 {
		return fmt.Errorf("server: simulate.interval_ms must be > 0")
	}

	// ------------------------------------------------------------
	// BACKING
	// ------------------------------------------------------------

	b := cfg.Backing
	switch {
	case b.Type == "" || strings.EqualFold(b.Type, BackingNone):
	case strings.EqualFold(b.Type, BackingSQLite):
		if strings.TrimSpace(b.SQLite.Path) == "" {
			return fmt.Errorf("backing: sqlite.path is required")
		}
	case strings.EqualFold(b.Type, BackingValkey):
		if strings.TrimSpace(b.Valkey.Address) == "" {
			return fmt.Errorf("backing: valkey.address is required")
		}
		if b.Valkey.Database < 0 {
			return fmt.Errorf("backing: valkey.database must be >= 0")
		}
	default:
		return fmt.Errorf("backing: unknown type %q (want none, sqlite or valkey)", b.Type)
	}

	// ------------------------------------------------------------
	// MQTT (OPT-IN)
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return fmt.Errorf("mqtt: broker is required when enabled")
		}
		if cfg.MQTT.Port <= 0 || cfg.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt: port %d out of range", cfg.MQTT.Port)
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log: unknown format %q (want console or json)", cfg.Log.Format)
	}

	return nil
}
