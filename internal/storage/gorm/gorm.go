// Package gormstorage implements storage.Backend on GORM with internal queues and a
// background writer goroutine. The sqlite and postgres backends wrap it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/scenewalk/scenewalk/internal/queue"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// ErrNoSession is returned by EndSession before StartSession.
var ErrNoSession = errors.New("no session started")

const (
	// DefaultFlushInterval is how often queued rows are written.
	DefaultFlushInterval = time.Second
	// DefaultMaxQueued bounds each row queue; rows past it are dropped and counted.
	DefaultMaxQueued = 100_000
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB // nil runs in queue-only mode
	Logger        *slog.Logger
	FlushInterval time.Duration
	MaxQueued     int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Tracking *queue.Queue[TrackingEvent]
	Views    *queue.Queue[SlotView]
	Unlocks  *queue.Queue[GateUnlock]
	Parts    *queue.Queue[PartEvent]
	Loads    *queue.Queue[LoadEvent]
}

func newQueues() *queues {
	return &queues{
		Tracking: queue.New[TrackingEvent](),
		Views:    queue.New[SlotView](),
		Unlocks:  queue.New[GateUnlock](),
		Parts:    queue.New[PartEvent](),
		Loads:    queue.New[LoadEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	session   *core.Session
	localID   uint

	dropped atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	closed   atomic.Bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.MaxQueued <= 0 {
		deps.MaxQueued = DefaultMaxQueued
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB != nil {
		b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
		if err := b.deps.DB.AutoMigrate(Models...); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
	}
	return b.Flush()
}

// StartSession inserts the session row synchronously so later rows can reference it.
func (b *Backend) StartSession(s *core.Session) error {
	row := sessionRow(s)
	if b.deps.DB != nil {
		if err := b.deps.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
	} else {
		b.localID++
		row.ID = b.localID
	}
	b.session = s
	b.sessionID.Store(uint64(row.ID))
	b.deps.Logger.Info("Session started", "session", s.ID, "id", row.ID)
	return nil
}

// EndSession flushes pending rows and stamps the end time.
func (b *Backend) EndSession() error {
	if b.session == nil {
		return ErrNoSession
	}
	if b.session.EndedAt.IsZero() {
		b.session.EndedAt = time.Now()
	}
	if err := b.Flush(); err != nil {
		return err
	}
	if b.deps.DB == nil {
		return nil
	}
	id := uint(b.sessionID.Load())
	if err := b.deps.DB.Model(&Session{}).Where("id = ?", id).Update("ended_at", b.session.EndedAt).Error; err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func (b *Backend) id() uint {
	return uint(b.sessionID.Load())
}

// RecordTrackingEvent queues a tracking row
func (b *Backend) RecordTrackingEvent(e *core.TrackingEvent) error {
	push(b, b.queues.Tracking, trackingRow(b.id(), e))
	return nil
}

// RecordSlotView queues a view row
func (b *Backend) RecordSlotView(v *core.SlotView) error {
	push(b, b.queues.Views, viewRow(b.id(), v))
	return nil
}

// RecordGateUnlock queues an unlock row
func (b *Backend) RecordGateUnlock(g *core.GateUnlock) error {
	push(b, b.queues.Unlocks, unlockRow(b.id(), g))
	return nil
}

// RecordPartEvent queues a part row
func (b *Backend) RecordPartEvent(e *core.PartEvent) error {
	push(b, b.queues.Parts, partRow(b.id(), e))
	return nil
}

// RecordLoadEvent queues a load row
func (b *Backend) RecordLoadEvent(e *core.LoadEvent) error {
	push(b, b.queues.Loads, loadRow(b.id(), e))
	return nil
}

// Pending returns the number of queued rows not yet written.
func (b *Backend) Pending() int {
	q := b.queues
	return q.Tracking.Len() + q.Views.Len() + q.Unlocks.Len() + q.Parts.Len() + q.Loads.Len()
}

// Dropped returns how many rows were discarded because their queue was full.
func (b *Backend) Dropped() uint64 {
	return b.dropped.Load()
}

func push[T any](b *Backend, q *queue.Queue[T], row T) {
	if !q.TryPush(b.deps.MaxQueued, row) {
		b.dropped.Add(1)
	}
}

// writeLoop periodically drains queues into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	var reported uint64
	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Failed to write journal rows", "error", err, "pending", b.Pending())
			}
			if n := b.Dropped(); n > reported {
				b.deps.Logger.Warn("Journal rows dropped", "rows", n-reported, "total", n)
				reported = n
			}
		}
	}
}

// Flush writes every queued row now. Rows of a failed write go back on their queue
// for the next flush. In queue-only mode rows stay queued.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	db, limit := b.deps.DB, b.deps.MaxQueued
	writers := []func() (int, int, error){
		func() (int, int, error) { return writeQueue(db, b.queues.Tracking, limit) },
		func() (int, int, error) { return writeQueue(db, b.queues.Views, limit) },
		func() (int, int, error) { return writeQueue(db, b.queues.Unlocks, limit) },
		func() (int, int, error) { return writeQueue(db, b.queues.Parts, limit) },
		func() (int, int, error) { return writeQueue(db, b.queues.Loads, limit) },
	}

	start := time.Now()
	total := 0
	var errs []error
	for _, write := range writers {
		n, lost, err := write()
		if err != nil {
			errs = append(errs, err)
		}
		if lost > 0 {
			b.dropped.Add(uint64(lost))
		}
		total += n
	}

	if total > 0 {
		b.deps.Logger.Debug("Wrote journal rows", "rows", total, "duration", time.Since(start))
	}
	return errors.Join(errs...)
}

// writeQueue inserts everything queued in q in one transaction. On failure the rows
// are requeued up to limit and the overflow is reported as lost.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], limit int) (written, lost int, err error) {
	items := q.Drain()
	if len(items) == 0 {
		return 0, 0, nil
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&items, 500).Error
	})
	if err != nil {
		for _, it := range items {
			if !q.TryPush(limit, it) {
				lost++
			}
		}
		var zero T
		return 0, lost, fmt.Errorf("failed to write %T rows: %w", zero, err)
	}
	return len(items), 0, nil
}
