package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
		want  map[string]any
	}{
		{
			level: "debug",
			log:   func(dl *DispatcherLogger) { dl.Debug("handling event", "command", ":NAV:NEXT:", "args", 0) },
			want:  map[string]any{"command": ":NAV:NEXT:", "args": float64(0)},
		},
		{
			level: "info",
			log:   func(dl *DispatcherLogger) { dl.Info("slot shown", "target", 1, "label", "2/3") },
			want:  map[string]any{"target": float64(1), "label": "2/3"},
		},
		{
			level: "error",
			log:   func(dl *DispatcherLogger) { dl.Error("dispatch failed") },
			want:  map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decodeEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "dispatcher", entry["component"])
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}
}

func TestDispatcherLogger_DropsMalformedPairs(t *testing.T) {
	var buf bytes.Buffer
	NewDispatcherLogger(zerolog.New(&buf)).Info("odd", 7, "ignored", "target", 1, "dangling")

	entry := decodeEntry(t, &buf)
	assert.NotContains(t, entry, "7")
	assert.NotContains(t, entry, "dangling")
	assert.Equal(t, float64(1), entry["target"])
}

func TestDispatcherLogger_Errors(t *testing.T) {
	var buf bytes.Buffer
	NewDispatcherLogger(zerolog.New(&buf)).
		Error("event failed", "command", ":TARGET:FOUND:", "error", errors.New("no target 9"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "no target 9", entry["error"])
	assert.Equal(t, ":TARGET:FOUND:", entry["command"])
}

func TestDispatcherLogger_DisabledLevelWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)).Debug("quiet", "key", "value")
	assert.Zero(t, buf.Len())
}
