// internal/config/env.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApplyEnv applies REGSYNC_* environment overrides.
// Keys present in changed (explicit command-line flags) are left alone.
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := envSetter{changed: changed}

	s.setString("endpoint", os.Getenv("REGSYNC_ENDPOINT"), &cfg.Client.Endpoint)
	s.setString("listen", os.Getenv("REGSYNC_LISTEN"), &cfg.Server.Listen)
	s.setString("backing", os.Getenv("REGSYNC_BACKING"), &cfg.Backing.Type)
	s.setString("sqlite-path", os.Getenv("REGSYNC_SQLITE_PATH"), &cfg.Backing.SQLite.Path)
	s.setString("valkey-address", os.Getenv("REGSYNC_VALKEY_ADDRESS"), &cfg.Backing.Valkey.Address)
	s.setString("valkey-password", os.Getenv("REGSYNC_VALKEY_PASSWORD"), &cfg.Backing.Valkey.Password)
	s.setString("mqtt-broker", os.Getenv("REGSYNC_MQTT_BROKER"), &cfg.MQTT.Broker)
	s.setString("mqtt-username", os.Getenv("REGSYNC_MQTT_USERNAME"), &cfg.MQTT.Username)
	s.setString("mqtt-password", os.Getenv("REGSYNC_MQTT_PASSWORD"), &cfg.MQTT.Password)
	s.setString("log-level", os.Getenv("REGSYNC_LOG_LEVEL"), &cfg.Log.Level)
	s.setString("log-format", os.Getenv("REGSYNC_LOG_FORMAT"), &cfg.Log.Format)

	if err := s.setInt("poll-interval", os.Getenv("REGSYNC_POLL_INTERVAL_MS"), &cfg.Client.Poll.IntervalMs); err != nil {
		return err
	}
	if err := s.setInt("timeout", os.Getenv("REGSYNC_TIMEOUT_MS"), &cfg.Client.TimeoutMs); err != nil {
		return err
	}
	if err := s.setInt("mqtt-port", os.Getenv("REGSYNC_MQTT_PORT"), &cfg.MQTT.Port); err != nil {
		return err
	}
	if err := s.setBool("mqtt", os.Getenv("REGSYNC_MQTT_ENABLED"), &cfg.MQTT.Enabled); err != nil {
		return err
	}
	if err := s.setBool("simulate", os.Getenv("REGSYNC_SIMULATE"), &cfg.Server.Simulate.Enabled); err != nil {
		return err
	}
	if err := s.setUnits("units", os.Getenv("REGSYNC_UNITS"), &cfg.Units); err != nil {
		return err
	}
	return nil
}

type envSetter struct {
	changed map[string]bool
}

func (s envSetter) skip(flag, value string) bool {
	return value == "" || s.changed[flag]
}

func (s envSetter) setString(flag, value string, dst *string) {
	if s.skip(flag, value) {
		return
	}
	*dst = value
}

func (s envSetter) setInt(flag, value string, dst *int) error {
	if s.skip(flag, value) {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

func (s envSetter) setBool(flag, value string, dst *bool) error {
	if s.skip(flag, value) {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}

// setUnits parses a comma-separated unit list such as "1,2,3".
func (s envSetter) setUnits(flag, value string, dst *[]int) error {
	if s.skip(flag, value) {
		return nil
	}
	var units []int
	for _, f := range strings.Split(value, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		u, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", flag, err)
		}
		units = append(units, u)
	}
	*dst = units
	return nil
}
