package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/database"
	"github.com/scenewalk/scenewalk/internal/storage"
	gormstorage "github.com/scenewalk/scenewalk/internal/storage/gorm"
	"github.com/scenewalk/scenewalk/pkg/core"
)

var _ storage.Backend = (*Backend)(nil)

func TestEndSession_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	b, err := New(Config{DumpPath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{ID: "s", StartedAt: time.Now()}))
	require.NoError(t, b.RecordSlotView(&core.SlotView{Time: time.Now(), Slot: 2, Label: "3/4"}))
	require.NoError(t, b.EndSession())

	disk, err := database.GetSqliteDB(path)
	require.NoError(t, err)
	var views []gormstorage.SlotView
	require.NoError(t, disk.Find(&views).Error)
	require.Len(t, views, 1)
	assert.Equal(t, "3/4", views[0].Label)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestDump_NoPath(t *testing.T) {
	b, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()
	assert.NoError(t, b.Dump())
}
