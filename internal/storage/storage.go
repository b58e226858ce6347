// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// ErrUnknownBackend is returned when storage.type names no backend.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend is the interface all journal implementations must satisfy. It is a superset of
// the coordinator's Journal.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Journal rows
	RecordTrackingEvent(e *core.TrackingEvent) error
	RecordSlotView(v *core.SlotView) error
	RecordGateUnlock(g *core.GateUnlock) error
	RecordPartEvent(e *core.PartEvent) error
	RecordLoadEvent(e *core.LoadEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the collection server.
type Uploadable interface {
	ExportedFilePath() string
	ExportMetadata() core.UploadMetadata
}
