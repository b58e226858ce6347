// Package database opens the journal databases: Postgres for the collection site and
// in-memory SQLite as the kiosk fallback, dumped to disk with VACUUM INTO.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const maxPostgresConns = 10

// Manager holds the journal connection. Connect prefers Postgres and falls back to
// an in-memory SQLite database that DumpMemoryToDisk persists.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger

	// IsValid is set once a connection is usable and cleared by a failed migration.
	IsValid bool
	// ShouldSaveLocal reports the SQLite fallback is in use.
	ShouldSaveLocal bool
	SqliteFilePath  string
}

// NewManager creates an unconnected manager. sqlitePath is where the fallback
// database is dumped.
func NewManager(log zerolog.Logger, sqlitePath string) *Manager {
	return &Manager{SqliteFilePath: sqlitePath, Logger: log}
}

// Connect opens Postgres, or the in-memory SQLite fallback when Postgres cannot be
// reached.
func (m *Manager) Connect() error {
	db, err := m.connectPostgres()
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		if db, err = m.connectMemory(); err != nil {
			m.IsValid = false
			return err
		}
		m.ShouldSaveLocal = true
		m.Logger.Info().Str("dump", m.SqliteFilePath).Msg("Using local SQLite DB in memory with periodic disk dump")
	} else {
		m.Logger.Info().Msg("Connected to database")
	}

	m.DB = db
	m.IsValid = true
	return nil
}

func (m *Manager) connectPostgres() (*gorm.DB, error) {
	db, err := m.GetPostgresDB()
	if err != nil {
		return nil, err
	}
	pool, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, err
	}
	pool.SetMaxOpenConns(maxPostgresConns)
	m.SqlDB = pool
	return db, nil
}

func (m *Manager) connectMemory() (*gorm.DB, error) {
	db, err := GetSqliteDB(MemoryDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	if m.SqlDB, err = db.DB(); err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	return db, nil
}

// Setup migrates the given models.
func (m *Manager) Setup(models ...any) error {
	if m.DB == nil {
		return fmt.Errorf("db not connected")
	}
	if err := m.DB.AutoMigrate(models...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Debug().Int("models", len(models)).Msg("Database schema ready")
	return nil
}

// GetPostgresDB opens Postgres with the db.* settings.
func (m *Manager) GetPostgresDB() (*gorm.DB, error) {
	m.Logger.Debug().
		Str("host", viper.GetString("db.host")).
		Str("database", viper.GetString("db.database")).
		Msg("Connecting to Postgres DB")
	return GetPostgresDB(PostgresDSN())
}

// DumpMemoryToDisk snapshots the fallback database to SqliteFilePath.
func (m *Manager) DumpMemoryToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}
