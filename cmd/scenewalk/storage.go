package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/database"
	"github.com/scenewalk/scenewalk/internal/influx"
	"github.com/scenewalk/scenewalk/internal/storage"
	"github.com/scenewalk/scenewalk/internal/storage/memory"
	pgstorage "github.com/scenewalk/scenewalk/internal/storage/postgres"
	sqlitestorage "github.com/scenewalk/scenewalk/internal/storage/sqlite"
	wsstorage "github.com/scenewalk/scenewalk/internal/storage/websocket"
)

// newJournal builds the configured backend, plus the InfluxDB journal when enabled.
func newJournal(cfg config.StorageConfig, log *slog.Logger, zl zerolog.Logger, started time.Time) (*storage.Fanout, error) {
	primary, err := createStorageBackend(cfg, log, zl)
	if err != nil {
		return nil, err
	}
	backends := []storage.Backend{primary}

	if config.GetBool("influx.enabled") {
		backup := filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("influx_%s.lp.gz", started.Format("20060102_150405")))
		backends = append(backends, influx.NewManager(zl, backup))
		log.Info("InfluxDB journal enabled", "backup", backup)
	}
	return storage.NewFanout(backends...), nil
}

func createStorageBackend(cfg config.StorageConfig, log *slog.Logger, zl zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "memory", "":
		log.Info("Memory storage backend initialized")
		return memory.New(cfg.Memory), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.Path,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		log.Info("SQLite storage backend initialized", "path", cfg.SQLite.Path)
		return backend, nil

	case "postgres":
		log.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			Manager: database.NewManager(zl, cfg.SQLite.Path),
			Logger:  log,
		}), nil

	case "websocket":
		wsURL := cfg.WebSocket.URL
		if wsURL == "" {
			wsURL = httpToWS(config.GetString("api.serverUrl")) + "/api/v1/stream"
		}
		secret := cfg.WebSocket.Secret
		if secret == "" {
			secret = config.GetString("api.apiKey")
		}
		log.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
			Logger: log,
		}), nil

	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
