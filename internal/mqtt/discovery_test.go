package mqtt

import (
	"encoding/json"
	"testing"
)

func TestSafeObjectID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"00:1A:2B:10:00:01", "00_1a_2b_10_00_01"},
		{"office-5G", "office_5g"},
		{"::", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := SafeObjectID(tt.in); got != tt.want {
			t.Errorf("SafeObjectID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildNetworkDiscoveryConfigs(t *testing.T) {
	n := office
	n.Vendor = "Cisco Systems, Inc"
	configs := BuildNetworkDiscoveryConfigs(&n, "wlanscan", "homeassistant")
	if len(configs) != 2 {
		t.Fatalf("got %d configs, want 2", len(configs))
	}

	if want := "homeassistant/sensor/wlanscan_00_1a_2b_10_00_01/rssi/config"; configs[0].Topic != want {
		t.Errorf("sensor topic = %q, want %q", configs[0].Topic, want)
	}
	var sensor SensorConfig
	if err := json.Unmarshal(configs[0].Payload, &sensor); err != nil {
		t.Fatalf("decode sensor: %v", err)
	}
	if sensor.StateTopic != "wlanscan/network/00_1a_2b_10_00_01" {
		t.Errorf("StateTopic = %q", sensor.StateTopic)
	}
	if sensor.DeviceClass != "signal_strength" || sensor.UnitOfMeasurement != "dBm" {
		t.Errorf("sensor class/unit = %q/%q", sensor.DeviceClass, sensor.UnitOfMeasurement)
	}
	if sensor.Icon != "mdi:wifi-lock" {
		t.Errorf("Icon = %q, want mdi:wifi-lock", sensor.Icon)
	}
	if sensor.Device.Manufacturer != "Cisco Systems, Inc" {
		t.Errorf("Manufacturer = %q", sensor.Device.Manufacturer)
	}

	var binary BinarySensorConfig
	if err := json.Unmarshal(configs[1].Payload, &binary); err != nil {
		t.Fatalf("decode binary sensor: %v", err)
	}
	if binary.PayloadOn != "ON" || binary.StateTopic != sensor.StateTopic {
		t.Errorf("binary sensor = %+v", binary)
	}
}

func TestBuildNetworkDiscoveryConfigs_Nil(t *testing.T) {
	if got := BuildNetworkDiscoveryConfigs(nil, "wlanscan", "homeassistant"); got != nil {
		t.Errorf("BuildNetworkDiscoveryConfigs(nil) = %v, want nil", got)
	}
}

func TestBuildNetworkRemovalConfigs(t *testing.T) {
	configs := BuildNetworkRemovalConfigs("00:1a:2b:10:00:01", "ha")
	if len(configs) != 2 {
		t.Fatalf("got %d configs, want 2", len(configs))
	}
	for _, c := range configs {
		if len(c.Payload) != 0 {
			t.Errorf("%s has a payload", c.Topic)
		}
	}
}

func TestSecurityIcon(t *testing.T) {
	tests := map[string]string{
		"Open":                  "mdi:wifi",
		"Open (OWE transition)": "mdi:wifi",
		"WEP":                   "mdi:wifi-alert",
		"WPA2":                  "mdi:wifi-lock",
	}
	for in, want := range tests {
		if got := securityIcon(in); got != want {
			t.Errorf("securityIcon(%q) = %q, want %q", in, got, want)
		}
	}
}
