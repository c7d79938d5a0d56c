package ws

import "time"

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageScanStarted   MessageType = "scan.started"
	MessageScanProgress  MessageType = "scan.progress"
	MessageScanNetwork   MessageType = "scan.network"
	MessageScanCompleted MessageType = "scan.completed"
	MessageScanFailed    MessageType = "scan.failed"
)

// Message is the envelope for all WebSocket messages. Data carries the
// scan event payload unchanged.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}
