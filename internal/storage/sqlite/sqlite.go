// Package sqlitestorage keeps the journal in an in-memory SQLite database and
// snapshots it to disk with VACUUM INTO, periodically and at session end. Everything
// else is the shared GORM backend.
package sqlitestorage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/scenewalk/scenewalk/internal/database"
	gormstorage "github.com/scenewalk/scenewalk/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // empty disables dumps
}

// Backend is the GORM backend over an in-memory SQLite database.
type Backend struct {
	*gormstorage.Backend

	db  *gorm.DB
	cfg Config
	log *slog.Logger

	stop      context.CancelFunc
	loop      sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New opens a fresh in-memory database.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.GetSqliteDB(database.MemoryDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:      db,
		cfg:     cfg,
		log:     logger.With("backend", "sqlite"),
		stop:    func() {},
	}, nil
}

// Init migrates the schema and starts periodic dumps when configured.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" || b.cfg.DumpInterval <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.stop = cancel
	b.loop.Add(1)
	go func() {
		defer b.loop.Done()
		b.dumpEvery(ctx, b.cfg.DumpInterval)
	}()
	return nil
}

// EndSession flushes the journal and writes a final dump.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops periodic dumps and closes the GORM backend. Later calls return the
// first result.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		b.stop()
		b.loop.Wait()
		b.closeErr = b.Backend.Close()
	})
	return b.closeErr
}

// Dump flushes queued rows and snapshots the database to DumpPath. No-op without a
// path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	if err := b.Backend.Flush(); err != nil {
		return err
	}
	return database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

func (b *Backend) dumpEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		start := time.Now()
		if err := b.Dump(); err != nil {
			b.log.Error("Error dumping to disk", "error", err)
			continue
		}
		b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	}
}
