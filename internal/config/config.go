// internal/config/config.go
package config

import (
	"time"

	"github.com/tamzrod/modbus-regsync/internal/register"
)

type Config struct {
	Layout  LayoutConfig  `yaml:"layout"`
	Units   []int         `yaml:"units"`
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Backing BackingConfig `yaml:"backing"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
}

// ---- LAYOUT ----

// SpanConfig is a half-open register range: end is exclusive.
type SpanConfig struct {
	Start uint16 `yaml:"start"`
	End   uint16 `yaml:"end"`
}

func (s SpanConfig) Span() register.Span {
	return register.Span{Start: s.Start, End: s.End}
}

type LayoutConfig struct {
	Size     uint16     `yaml:"size"`
	ReadOnly SpanConfig `yaml:"read_only"`
	Writable SpanConfig `yaml:"writable"`
}

func (l LayoutConfig) Layout() register.Layout {
	return register.Layout{
		Size:     l.Size,
		ReadOnly: l.ReadOnly.Span(),
		Writable: l.Writable.Span(),
	}
}

// ---- CLIENT ----

type ClientConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	TimeoutMs int           `yaml:"timeout_ms"`
	TickMs    int           `yaml:"tick_ms"`
	Backoff   BackoffConfig `yaml:"backoff"`
	Poll      PollConfig    `yaml:"poll"`
	Read      SpanConfig    `yaml:"read"`
	QueueSize int           `yaml:"queue_size"`
}

type BackoffConfig struct {
	InitialMs int `yaml:"initial_ms"`
	MaxMs     int `yaml:"max_ms"`
}

type PollConfig struct {
	IntervalMs   int `yaml:"interval_ms"`
	PauseRetryMs int `yaml:"pause_retry_ms"` // wait while the link is down
}

// ---- SERVER ----

type ServerConfig struct {
	Listen        string         `yaml:"listen"`
	IdleTimeoutMs int            `yaml:"idle_timeout_ms"` // 0 = 2m
	MaxClients    int            `yaml:"max_clients"`     // 0 = 16
	StrictFraming bool           `yaml:"strict_framing"`
	Simulate      SimulateConfig `yaml:"simulate"`
}

// SimulateConfig drives the read-only registers of every served unit.
type SimulateConfig struct {
	Enabled    bool `yaml:"enabled"`
	IntervalMs int  `yaml:"interval_ms"`
}

// ---- BACKING ----

const (
	BackingNone   = "none"
	BackingSQLite = "sqlite"
	BackingValkey = "valkey"
)

type BackingConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Valkey ValkeyConfig `yaml:"valkey"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type ValkeyConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	Database  int    `yaml:"database"`
	TLS       bool   `yaml:"tls"`
	KeyPrefix string `yaml:"key_prefix"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"`
	Port         int    `yaml:"port"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	TLS          bool   `yaml:"tls"`
	RootTopic    string `yaml:"root_topic"`
	AcceptWrites bool   `yaml:"accept_writes"` // client role only
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Ms converts a millisecond setting.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// UnitIDs returns the configured units. Call after Validate.
func (c *Config) UnitIDs() []uint8 {
	out := make([]uint8, len(c.Units))
	for i, u := range c.Units {
		out[i] = uint8(u)
	}
	return out
}
