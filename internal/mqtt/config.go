package mqtt

import "time"

// Config holds MQTT publisher configuration.
type Config struct {
	BrokerURL   string        `mapstructure:"broker_url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"` //nolint:gosec // G101: config field name, not a credential
	ClientID    string        `mapstructure:"client_id"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	QoS         byte          `mapstructure:"qos"`
	Timeout     time.Duration `mapstructure:"timeout"`

	// WatchSSIDs limits per-network state to these SSIDs. Empty publishes
	// every network in the table.
	WatchSSIDs []string `mapstructure:"watch_ssids"`

	// Home Assistant MQTT auto-discovery settings.
	HADiscovery       bool   `mapstructure:"ha_discovery"`        // Enable HA auto-discovery (default: false)
	HADiscoveryPrefix string `mapstructure:"ha_discovery_prefix"` // HA discovery topic prefix (default: "homeassistant")
}

// DefaultConfig returns sensible defaults for the MQTT publisher.
func DefaultConfig() Config {
	return Config{
		BrokerURL:         "", // disabled by default
		ClientID:          "wlanscan",
		TopicPrefix:       "wlanscan",
		QoS:               1,
		Timeout:           10 * time.Second,
		HADiscovery:       false,
		HADiscoveryPrefix: "homeassistant",
	}
}
