// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/storage"
	v1 "github.com/scenewalk/scenewalk/internal/storage/memory/export/v1"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

// Verify Backend implements storage.Uploadable interface
var _ storage.Uploadable = (*Backend)(nil)

var start = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func session() *core.Session {
	return &core.Session{
		ID:        "abc",
		Tour:      "Campus Walk",
		Host:      "kiosk-1",
		StartedAt: start,
		EndedAt:   start.Add(2 * time.Minute),
		Targets:   2,
	}
}

func record(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.RecordTrackingEvent(&core.TrackingEvent{Time: start, Target: 0, Action: core.TrackingActivated}))
	require.NoError(t, b.RecordSlotView(&core.SlotView{Time: start, Target: 0, Slot: 0, Label: "1/4"}))
	require.NoError(t, b.RecordPartEvent(&core.PartEvent{Time: start.Add(time.Second), Target: 0, Part: 0, Action: core.PartRevealed}))
	require.NoError(t, b.RecordLoadEvent(&core.LoadEvent{Time: start, Target: 0, Kind: "part", Ref: "a0p0"}))
	require.NoError(t, b.RecordGateUnlock(&core.GateUnlock{Time: start.Add(time.Minute), Target: 0, Viewed: []int{0, 1, 2}}))
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestEndSession_WithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	assert.ErrorIs(t, b.EndSession(), ErrNoSession)
}

func TestStartSession_ResetsRows(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(session()))
	record(t, b)
	assert.Equal(t, 1, b.Counts()["unlocks"])

	require.NoError(t, b.StartSession(session()))
	for kind, n := range b.Counts() {
		assert.Zero(t, n, kind)
	}
}

func TestRecordGateUnlock_CopiesViewed(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(session()))

	viewed := []int{0, 1}
	require.NoError(t, b.RecordGateUnlock(&core.GateUnlock{Viewed: viewed}))
	viewed[0] = 9

	assert.Equal(t, []int{0, 1}, b.unlocks[0].Viewed)
}

func TestEndSession_WritesGzipExport(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.StartSession(session()))
	record(t, b)
	require.NoError(t, b.EndSession())

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Campus_Walk_20240115_103000.json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export v1.Export
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "abc", export.SessionID)
	assert.Len(t, export.Events, 5)
	require.Len(t, export.Targets, 2)
	assert.Equal(t, 60.0, export.Targets[0].UnlockedAt)

	meta := b.ExportMetadata()
	assert.Equal(t, "abc", meta.SessionID)
	assert.Equal(t, 120.0, meta.Duration)
	assert.Equal(t, 1, meta.Unlocked)
}

func TestEndSession_PlainJSONAndEndTime(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	s := session()
	s.Tour = ""
	s.EndedAt = time.Time{}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.EndSession())

	assert.False(t, s.EndedAt.IsZero(), "end time stamped")
	assert.Equal(t, filepath.Join(dir, "session_20240115_103000.json"), b.ExportedFilePath())

	data, err := os.ReadFile(b.ExportedFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"formatVersion":1`)
}

func TestExportMetadata_NoSession(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.Equal(t, core.UploadMetadata{}, b.ExportMetadata())
	assert.Empty(t, b.ExportedFilePath())
}

func TestConcurrentRecording(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(session()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.RecordPartEvent(&core.PartEvent{Part: i, Action: core.PartRevealed})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, b.Counts()["parts"])
}

func TestExportFileName(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		tour     string
		compress bool
		want     string
	}{
		{"campus", false, "campus_20240115_103000.json"},
		{"Old Town: North/South", true, "Old_Town__North_South_20240115_103000.json.gz"},
		{"", false, "session_20240115_103000.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exportFileName(&core.Session{Tour: tt.tour, StartedAt: at}, tt.compress))
	}
}
