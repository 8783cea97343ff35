package config

import (
	"fmt"

	"github.com/kilianp07/truckhub/infra/mqtt"
	"github.com/kilianp07/truckhub/internal/eventbus"
)

// EventsConfig controls the event bus and its MQTT bridge.
type EventsConfig struct {
	// Buffer is the per-subscriber channel size.
	Buffer int `json:"buffer"`
	// MQTT publishes events when a broker is set.
	MQTT mqtt.Config `json:"mqtt"`
}

// SetDefaults fills unset fields.
func (c *EventsConfig) SetDefaults() {
	if c.Buffer <= 0 {
		c.Buffer = eventbus.DefaultBuffer
	}
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
}

// Validate checks the MQTT settings when enabled.
func (c EventsConfig) Validate() error {
	if c.MQTT.Broker == "" {
		return nil
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("events: mqtt qos %d outside 0..2", c.MQTT.QoS)
	}
	if c.MQTT.UseTLS && (c.MQTT.ClientCert == "") != (c.MQTT.ClientKey == "") {
		return fmt.Errorf("events: mqtt client_cert and client_key must be set together")
	}
	return nil
}
