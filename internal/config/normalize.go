// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// Endpoint: accept a tcp:// URL form
	cfg.Client.Endpoint = strings.TrimPrefix(strings.TrimSpace(cfg.Client.Endpoint), "tcp://")

	cfg.Backing.Type = strings.ToLower(cfg.Backing.Type)
	if cfg.Backing.Type == "" {
		cfg.Backing.Type = BackingNone
	}

	cfg.MQTT.RootTopic = strings.Trim(cfg.MQTT.RootTopic, "/")
	if cfg.MQTT.RootTopic == "" {
		cfg.MQTT.RootTopic = "regsync"
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
}
