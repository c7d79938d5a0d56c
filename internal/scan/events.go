package scan

import "github.com/HerbHall/wlanscan/pkg/models"

// Event topics published by the scan module.
const (
	TopicScanStarted   = "wlan.scan.started"
	TopicScanProgress  = "wlan.scan.progress"
	TopicScanNetwork   = "wlan.scan.network"
	TopicScanCompleted = "wlan.scan.completed"
	TopicScanFailed    = "wlan.scan.failed"
)

// StartedEvent is the payload for TopicScanStarted.
type StartedEvent struct {
	SessionID    string `json:"session_id"`
	Filtered     bool   `json:"filtered"`
	Channels     int    `json:"channels"`
	KeepPrevious bool   `json:"keep_previous"`
}

// ProgressEvent is the payload for TopicScanProgress, one per sub-command.
type ProgressEvent struct {
	SessionID string  `json:"session_id"`
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	Channels  []uint8 `json:"channels"`
	Found     int     `json:"found"`
	Rescan    bool    `json:"rescan"`
}

// NetworkEvent is the payload for TopicScanNetwork.
type NetworkEvent struct {
	SessionID string                `json:"session_id"`
	Outcome   string                `json:"outcome"`
	Network   models.NetworkSummary `json:"network"`
}

// EndedEvent is the payload for TopicScanCompleted and TopicScanFailed.
// Networks holds the table as it stood when the session ended.
type EndedEvent struct {
	Session  models.SessionSummary   `json:"session"`
	Networks []models.NetworkSummary `json:"networks,omitempty"`
}
