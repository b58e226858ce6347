package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/database"
	"github.com/scenewalk/scenewalk/pkg/core"
)

func fixedStatus() core.Status {
	return core.Status{
		Session:       "s1",
		Time:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Active:        1,
		Label:         "Building 1/3",
		QueueLen:      2,
		PendingTimers: 3,
		Targets: []core.TargetStatus{
			{ID: 0, GateOpen: true, Complete: true},
			{ID: 1, Initialized: true},
		},
	}
}

func TestSnapshot(t *testing.T) {
	s := NewService(Dependencies{Status: fixedStatus})
	st, sample := s.Snapshot()

	assert.Equal(t, "Building 1/3", st.Label)
	assert.Equal(t, "s1", sample.Session)
	assert.Equal(t, 1, sample.Active)
	assert.Equal(t, 2, sample.QueueLen)
	assert.Equal(t, 3, sample.PendingTimers)
	assert.Equal(t, 1, sample.Unlocked)
	assert.Equal(t, 1, sample.Complete)
}

func TestWriteOnce_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{Status: fixedStatus, Path: path})
	require.NoError(t, s.WriteOnce())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got core.Status
	require.NoError(t, json.Unmarshal(data, &got))
	want := fixedStatus()
	assert.True(t, want.Time.Equal(got.Time))
	assert.Equal(t, want.Label, got.Label)
	assert.Equal(t, want.Session, got.Session)
	assert.Equal(t, want.Targets, got.Targets)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are renamed away")
}

func TestWriteOnce_StoresSample(t *testing.T) {
	db, err := database.GetSqliteDB(database.MemoryDSN())
	require.NoError(t, err)

	s := NewService(Dependencies{Status: fixedStatus, DB: db, Interval: time.Hour})
	require.NoError(t, s.Start())
	require.NoError(t, s.WriteOnce())
	s.Stop()

	var rows []Sample
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 2, "one explicit write plus the final write on stop")
	assert.Equal(t, "s1", rows[0].Session)
	assert.Equal(t, 1, rows[0].Unlocked)
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{
		Status: func() core.Status {
			calls.Add(1)
			return fixedStatus()
		},
		Path:     path,
		Interval: 5 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.False(t, s.IsRunning())
	assert.FileExists(t, path)

	s.Stop()
}
