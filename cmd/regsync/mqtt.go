// cmd/regsync/mqtt.go
package main

import (
	"github.com/tamzrod/modbus-regsync/internal/logging"
	"github.com/tamzrod/modbus-regsync/internal/sink/mqtt"
)

// startMQTT connects the optional broker sink. A broker that cannot be
// reached is logged and skipped. w is nil in the server role.
func startMQTT(rt *app, w mqtt.Writer) *mqtt.Publisher {
	m := rt.cfg.MQTT
	if !m.Enabled {
		return nil
	}

	pub := mqtt.NewPublisher(mqtt.Config{
		Broker:    m.Broker,
		Port:      m.Port,
		ClientID:  m.ClientID,
		Username:  m.Username,
		Password:  m.Password,
		UseTLS:    m.TLS,
		RootTopic: m.RootTopic,
	}, logging.Component(rt.log, "mqtt"))

	if w != nil && m.AcceptWrites {
		pub.SetWriter(w)
	}

	if err := pub.Start(); err != nil {
		rt.log.Warn().Err(err).Str("broker", pub.Address()).Msg("mqtt sink disabled")
		return nil
	}
	rt.bus.Subscribe(pub.Handler())
	return pub
}
