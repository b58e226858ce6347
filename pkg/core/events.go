// pkg/core/events.go
package core

import (
	"time"
)

// TrackingAction is what the engine did with a tracking transition.
type TrackingAction string

const (
	TrackingArmed     TrackingAction = "armed"
	TrackingActivated TrackingAction = "activated"
	TrackingLost      TrackingAction = "lost"
	TrackingNotReady  TrackingAction = "not_ready"
	TrackingBusy      TrackingAction = "busy"
	TrackingUnarmed   TrackingAction = "unarmed"
	TrackingFound     TrackingAction = "found"
)

// TrackingEvent records a found/lost transition and the engine's response.
type TrackingEvent struct {
	Time   time.Time      `json:"time"`
	Target int            `json:"target"`
	Action TrackingAction `json:"action"`
	Detail string         `json:"detail,omitempty"`
}

// SlotView records the first time a slot became current.
type SlotView struct {
	Time   time.Time `json:"time"`
	Target int       `json:"target"`
	Slot   int       `json:"slot"`
	Label  string    `json:"label"`
}

// GateUnlock records a completion tracker reaching completion.
type GateUnlock struct {
	Time   time.Time `json:"time"`
	Target int       `json:"target"`
	Viewed []int     `json:"viewed"`
}

// PartAction is a visibility change of one composite part.
type PartAction string

const (
	PartStarted  PartAction = "started"
	PartRevealed PartAction = "revealed"
	PartHidden   PartAction = "hidden"
)

// PartEvent records a sequence start or a part reveal/hide.
type PartEvent struct {
	Time   time.Time  `json:"time"`
	Target int        `json:"target"`
	Slot   int        `json:"slot"`
	Part   int        `json:"part"` // -1 for PartStarted
	Ref    string     `json:"ref,omitempty"`
	Action PartAction `json:"action"`
}

// LoadEvent records the outcome of one asset load.
type LoadEvent struct {
	Time    time.Time     `json:"time"`
	Target  int           `json:"target"`
	Slot    int           `json:"slot"`
	Part    int           `json:"part"`
	Kind    string        `json:"kind"`
	Ref     string        `json:"ref"`
	Elapsed time.Duration `json:"elapsedNs"`
	Error   string        `json:"error,omitempty"`
}

// Failed reports whether the load errored.
func (e *LoadEvent) Failed() bool {
	return e.Error != ""
}
