package models

import "fmt"

// ScanType selects how a channel is probed.
type ScanType uint8

const (
	// ScanTypeUnchanged defers to the adapter default.
	ScanTypeUnchanged ScanType = iota
	ScanTypeActive
	ScanTypePassive
	// ScanTypePassiveToActive listens first and switches to probing once a
	// beacon proves the channel is clear.
	ScanTypePassiveToActive
)

func (t ScanType) String() string {
	switch t {
	case ScanTypeActive:
		return "active"
	case ScanTypePassive:
		return "passive"
	case ScanTypePassiveToActive:
		return "passive_to_active"
	default:
		return "unchanged"
	}
}

// ParseScanType accepts the String forms plus the empty string.
func ParseScanType(s string) (ScanType, error) {
	switch s {
	case "", "unchanged":
		return ScanTypeUnchanged, nil
	case "active":
		return ScanTypeActive, nil
	case "passive":
		return ScanTypePassive, nil
	case "passive_to_active":
		return ScanTypePassiveToActive, nil
	}
	return 0, fmt.Errorf("unknown scan type %q", s)
}

// BSSMode is the network topology a record or policy refers to.
type BSSMode uint8

const (
	BSSModeInfra BSSMode = iota + 1
	BSSModeIBSS
	BSSModeAuto
)

func (m BSSMode) String() string {
	switch m {
	case BSSModeInfra:
		return "infra"
	case BSSModeIBSS:
		return "ibss"
	case BSSModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseBSSMode accepts the String forms. The empty string means infra.
func ParseBSSMode(s string) (BSSMode, error) {
	switch s {
	case "", "infra":
		return BSSModeInfra, nil
	case "ibss", "adhoc":
		return BSSModeIBSS, nil
	case "auto", "any":
		return BSSModeAuto, nil
	}
	return 0, fmt.Errorf("unknown bss mode %q", s)
}

// SessionStatus is the lifecycle state of a scan session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionAborted   SessionStatus = "aborted"
	SessionFailed    SessionStatus = "failed"
)

// NetworkSummary is the API view of one scan table entry.
type NetworkSummary struct {
	BSSID         string  `json:"bssid" example:"00:11:22:33:44:55"`
	SSID          string  `json:"ssid" example:"office"`
	Hidden        bool    `json:"hidden"`
	Channel       int     `json:"channel" example:"6"`
	Band          string  `json:"band" example:"2.4GHz"`
	Frequency     int     `json:"frequency" example:"2437"`
	RSSI          int     `json:"rssi" example:"-52"`
	Security      string  `json:"security" example:"WPA2"`
	Mode          string  `json:"mode" example:"infra"`
	Vendor        string  `json:"vendor,omitempty" example:"Cisco Systems, Inc"`
	Compatible    bool    `json:"compatible"`
	Disable11n    bool    `json:"disable_11n,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	ChannelLoad   int     `json:"channel_load,omitempty"`
	Noise         int     `json:"noise,omitempty"`
	BeaconPeriod  int     `json:"beacon_period" example:"100"`
	DTIM          int     `json:"dtim,omitempty"`
	HT            bool    `json:"ht"`
	VHT           bool    `json:"vht"`
	HE            bool    `json:"he"`
	Transmitter   string  `json:"transmitter,omitempty"`
	LastSeen      string  `json:"last_seen" example:"2026-01-15T10:30:00Z"`
	SignalQuality float64 `json:"signal_quality"`
}

// SessionSummary is the API view of a scan session.
type SessionSummary struct {
	ID           string        `json:"id" example:"a1b2c3d4-e5f6-7890-abcd-ef1234567890"`
	Status       SessionStatus `json:"status" example:"completed"`
	StartedAt    string        `json:"started_at" example:"2026-01-15T10:30:00Z"`
	EndedAt      string        `json:"ended_at,omitempty"`
	SubCommands  int           `json:"sub_commands"`
	Issued       int           `json:"issued"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Replaced     int           `json:"replaced"`
	Dropped      int           `json:"dropped"`
	Rescanned    bool          `json:"rescanned"`
	Error        string        `json:"error,omitempty"`
	TableEntries int           `json:"table_entries"`
}

// Sighting is one network as recorded at the end of a scan session.
type Sighting struct {
	ID        string `json:"id" example:"5f0c6a1e-8d1b-4c7e-9a55-2f4d8e1b7c90"`
	SessionID string `json:"session_id"`
	BSSID     string `json:"bssid" example:"00:11:22:33:44:55"`
	SSID      string `json:"ssid" example:"office"`
	Hidden    bool   `json:"hidden"`
	Channel   int    `json:"channel" example:"6"`
	Band      string `json:"band" example:"2.4GHz"`
	RSSI      int    `json:"rssi" example:"-52"`
	Security  string `json:"security" example:"WPA2"`
	Vendor    string `json:"vendor,omitempty"`
	SeenAt    string `json:"seen_at" example:"2026-01-15T10:30:00Z"`
}
