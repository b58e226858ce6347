// Package v1 contains the v1 export format for scenewalk session journals.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion int      `json:"formatVersion"`
	SessionID     string   `json:"sessionId"`
	Tour          string   `json:"tour"`
	Host          string   `json:"host"`
	StartedAt     string   `json:"startedAt"`
	EndedAt       string   `json:"endedAt,omitempty"`
	Duration      float64  `json:"duration"` // seconds
	Targets       []Target `json:"targets"`

	// Events is the merged timeline, one row per journal entry:
	// [offsetMs, kind, target, ...kind-specific columns]
	Events [][]any `json:"events"`
}

// Target summarizes one target's progress over the session
type Target struct {
	ID         int     `json:"id"`
	Activated  int     `json:"activated"`
	Viewed     []int   `json:"viewed"`
	UnlockedAt float64 `json:"unlockedAt,omitempty"` // seconds from start, 0 when never
	Reveals    int     `json:"reveals"`
	LoadErrors int     `json:"loadErrors"`
}

// Event kinds in the timeline
const (
	KindTracking = "tracking"
	KindView     = "view"
	KindUnlock   = "unlock"
	KindPart     = "part"
	KindLoad     = "load"
)
