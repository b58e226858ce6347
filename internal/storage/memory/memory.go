// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// ErrNoSession is returned by EndSession before StartSession.
var ErrNoSession = errors.New("no session started")

// Backend keeps the session journal in memory and exports it to JSON on EndSession.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	tracking []core.TrackingEvent
	views    []core.SlotView
	unlocks  []core.GateUnlock
	parts    []core.PartEvent
	loads    []core.LoadEvent

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins a new journal, dropping anything recorded before.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.tracking = nil
	b.views = nil
	b.unlocks = nil
	b.parts = nil
	b.loads = nil
	b.lastExportPath = ""

	return nil
}

// EndSession stamps the end time if unset and exports the journal.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	if b.session.EndedAt.IsZero() {
		b.session.EndedAt = time.Now()
	}
	return b.exportJSON()
}

// RecordTrackingEvent appends a tracking row
func (b *Backend) RecordTrackingEvent(e *core.TrackingEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tracking = append(b.tracking, *e)
	return nil
}

// RecordSlotView appends a slot view row
func (b *Backend) RecordSlotView(v *core.SlotView) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.views = append(b.views, *v)
	return nil
}

// RecordGateUnlock appends a gate unlock row
func (b *Backend) RecordGateUnlock(g *core.GateUnlock) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	viewed := make([]int, len(g.Viewed))
	copy(viewed, g.Viewed)
	row := *g
	row.Viewed = viewed
	b.unlocks = append(b.unlocks, row)
	return nil
}

// RecordPartEvent appends a part row
func (b *Backend) RecordPartEvent(e *core.PartEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parts = append(b.parts, *e)
	return nil
}

// RecordLoadEvent appends a load row
func (b *Backend) RecordLoadEvent(e *core.LoadEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads = append(b.loads, *e)
	return nil
}

// Counts reports how many rows of each kind are held.
func (b *Backend) Counts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]int{
		"tracking": len(b.tracking),
		"views":    len(b.views),
		"unlocks":  len(b.unlocks),
		"parts":    len(b.parts),
		"loads":    len(b.loads),
	}
}
