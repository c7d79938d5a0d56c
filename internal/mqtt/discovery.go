package mqtt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/HerbHall/wlanscan/pkg/models"
)

// nonAlphanumeric matches any character that is not alphanumeric or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// DiscoveryConfig holds a single HA MQTT discovery payload.
type DiscoveryConfig struct {
	Topic   string // Full MQTT topic (homeassistant/...)
	Payload []byte // JSON-encoded config (empty = remove)
}

// HADevice is the "device" block in HA discovery payloads. Each BSS is one
// device.
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// BinarySensorConfig is the HA discovery payload for binary_sensor.
type BinarySensorConfig struct {
	Name          string   `json:"name"`
	ObjectID      string   `json:"object_id"`
	UniqueID      string   `json:"unique_id"`
	StateTopic    string   `json:"state_topic"`
	ValueTemplate string   `json:"value_template"`
	PayloadOn     string   `json:"payload_on"`
	PayloadOff    string   `json:"payload_off"`
	Icon          string   `json:"icon,omitempty"`
	Device        HADevice `json:"device"`
}

// SensorConfig is the HA discovery payload for sensor.
type SensorConfig struct {
	Name              string   `json:"name"`
	ObjectID          string   `json:"object_id"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	ValueTemplate     string   `json:"value_template"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Icon              string   `json:"icon,omitempty"`
	Device            HADevice `json:"device"`
}

// SafeObjectID sanitizes a string for use as an HA object_id.
// Replaces any non-alphanumeric character (except underscore) with underscore,
// lowercases, and trims leading/trailing underscores.
func SafeObjectID(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// NetworkTopic is the retained state topic of one BSS.
func NetworkTopic(topicPrefix, bssid string) string {
	return topicPrefix + "/network/" + SafeObjectID(bssid)
}

func buildHADevice(n *models.NetworkSummary) HADevice {
	name := n.SSID
	if n.Hidden || name == "" {
		name = "hidden"
	}
	return HADevice{
		Identifiers:  []string{"wlanscan_" + SafeObjectID(n.BSSID)},
		Name:         fmt.Sprintf("%s (%s)", name, n.BSSID),
		Manufacturer: n.Vendor,
		Model:        n.Band + " " + n.Security,
		ViaDevice:    "wlanscan",
	}
}

// BuildNetworkDiscoveryConfigs creates HA discovery payloads for a network:
// a signal strength sensor and a compatibility binary_sensor, both reading
// the network's state topic.
func BuildNetworkDiscoveryConfigs(n *models.NetworkSummary, topicPrefix, haPrefix string) []DiscoveryConfig {
	if n == nil {
		return nil
	}

	safeID := SafeObjectID(n.BSSID)
	haDevice := buildHADevice(n)
	state := NetworkTopic(topicPrefix, n.BSSID)

	configs := make([]DiscoveryConfig, 0, 2)

	rssiCfg := SensorConfig{
		Name:              haDevice.Name + " Signal",
		ObjectID:          "wlanscan_" + safeID + "_rssi",
		UniqueID:          "wlanscan_" + safeID + "_rssi",
		StateTopic:        state,
		ValueTemplate:     "{{ value_json.rssi }}",
		DeviceClass:       "signal_strength",
		StateClass:        "measurement",
		UnitOfMeasurement: "dBm",
		Icon:              securityIcon(n.Security),
		Device:            haDevice,
	}
	if payload, err := json.Marshal(rssiCfg); err == nil {
		configs = append(configs, DiscoveryConfig{
			Topic:   fmt.Sprintf("%s/sensor/wlanscan_%s/rssi/config", haPrefix, safeID),
			Payload: payload,
		})
	}

	compatCfg := BinarySensorConfig{
		Name:          haDevice.Name + " Joinable",
		ObjectID:      "wlanscan_" + safeID + "_compatible",
		UniqueID:      "wlanscan_" + safeID + "_compatible",
		StateTopic:    state,
		ValueTemplate: "{{ 'ON' if value_json.compatible else 'OFF' }}",
		PayloadOn:     "ON",
		PayloadOff:    "OFF",
		Icon:          "mdi:wifi-check",
		Device:        haDevice,
	}
	if payload, err := json.Marshal(compatCfg); err == nil {
		configs = append(configs, DiscoveryConfig{
			Topic:   fmt.Sprintf("%s/binary_sensor/wlanscan_%s/compatible/config", haPrefix, safeID),
			Payload: payload,
		})
	}

	return configs
}

// BuildNetworkRemovalConfigs returns discovery configs with empty payloads.
// Publishing an empty payload to a discovery topic tells HA to remove the
// entity.
func BuildNetworkRemovalConfigs(bssid, haPrefix string) []DiscoveryConfig {
	safeID := SafeObjectID(bssid)
	return []DiscoveryConfig{
		{Topic: fmt.Sprintf("%s/sensor/wlanscan_%s/rssi/config", haPrefix, safeID)},
		{Topic: fmt.Sprintf("%s/binary_sensor/wlanscan_%s/compatible/config", haPrefix, safeID)},
	}
}

// securityIcon picks a Material Design Icon for the security summary.
func securityIcon(security string) string {
	switch {
	case security == "", strings.HasPrefix(security, "Open"):
		return "mdi:wifi"
	case security == "WEP":
		return "mdi:wifi-alert"
	default:
		return "mdi:wifi-lock"
	}
}
