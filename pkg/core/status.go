// pkg/core/status.go
package core

import "time"

// Status is an immutable snapshot of engine state, safe to share across goroutines.
type Status struct {
	Session       string         `json:"session"`
	Time          time.Time      `json:"time"`
	Active        int            `json:"active"` // -1 when no target is active
	HUD           bool           `json:"hud"`
	Label         string         `json:"label"`
	Prev          bool           `json:"prev"`
	Next          bool           `json:"next"`
	Replay        bool           `json:"replay"`
	Notice        string         `json:"notice,omitempty"`
	QueueLen      int            `json:"queueLen"`
	PendingTimers int            `json:"pendingTimers"`
	Targets       []TargetStatus `json:"targets"`
}

// TargetStatus summarizes one target.
type TargetStatus struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Initialized bool     `json:"initialized"`
	Tracked     bool     `json:"tracked"`
	GateOpen    bool     `json:"gateOpen"`
	Slot        int      `json:"slot"`
	Slots       int      `json:"slots"`
	SlotState   string   `json:"slotState"`
	Viewed      []int    `json:"viewed"`
	Complete    bool     `json:"complete"`
	Visible     []string `json:"visible,omitempty"`
}
