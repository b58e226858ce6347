// Package streaming defines the wire protocol of the journal stream: every message is
// an Envelope, and the server acknowledges session start and end.
package streaming

import (
	"encoding/json"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeTracking     = "tracking_event"
	TypeSlotView     = "slot_view"
	TypeGateUnlock   = "gate_unlock"
	TypePartEvent    = "part_event"
	TypeLoadEvent    = "load_event"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session header.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// EndSessionPayload carries the final session duration.
type EndSessionPayload struct {
	SessionID string  `json:"sessionId"`
	Duration  float64 `json:"duration"` // seconds
}
