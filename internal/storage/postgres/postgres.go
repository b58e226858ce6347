// Package postgres implements the storage.Backend interface on PostgreSQL through the
// GORM backend. When Postgres is unreachable the database manager falls back to an
// in-memory SQLite database that is dumped to disk on EndSession.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/scenewalk/scenewalk/internal/database"
	gormstorage "github.com/scenewalk/scenewalk/internal/storage/gorm"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	Manager *database.Manager // required; Connect is called by Init
	Logger  *slog.Logger
}

// Backend implements storage.Backend using GORM/PostgreSQL with queue-based batch writes.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Manager == nil {
		deps.Manager = database.NewManager(zerolog.Nop(), "")
	}
	return &Backend{deps: deps}
}

// Init connects, then initializes the embedded GORM backend on that connection.
func (b *Backend) Init() error {
	m := b.deps.Manager
	if m.DB == nil {
		if err := m.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     m.DB,
		Logger: b.deps.Logger,
	})
	return b.Backend.Init()
}

// Local reports whether the journal fell back to local SQLite.
func (b *Backend) Local() bool {
	return b.deps.Manager.ShouldSaveLocal
}

// StartSession records the session row.
func (b *Backend) StartSession(s *core.Session) error {
	if b.Backend == nil {
		return fmt.Errorf("backend not initialized")
	}
	return b.Backend.StartSession(s)
}

// EndSession flushes, and dumps the local fallback database when one is in use.
func (b *Backend) EndSession() error {
	if b.Backend == nil {
		return fmt.Errorf("backend not initialized")
	}
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	if b.Local() && b.deps.Manager.SqliteFilePath != "" {
		return b.deps.Manager.DumpMemoryToDisk()
	}
	return nil
}

// Close flushes and releases the connection.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.deps.Manager.Close()
}
