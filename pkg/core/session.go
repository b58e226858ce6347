// pkg/core/session.go
package core

import "time"

// Session is one run of a tour from startup to shutdown.
type Session struct {
	ID        string    `json:"id"`
	Tour      string    `json:"tour"`
	Host      string    `json:"host"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Targets   int       `json:"targets"`
	Slots     int       `json:"slots"`
}

// Duration returns how long the session ran. Zero while still running.
func (s *Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// UploadMetadata describes an exported journal for the collection server.
type UploadMetadata struct {
	SessionID string  `json:"sessionId"`
	Tour      string  `json:"tour"`
	Host      string  `json:"host"`
	Duration  float64 `json:"duration"` // seconds
	Unlocked  int     `json:"unlocked"` // gates opened during the session
}
