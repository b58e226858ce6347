package influx

import (
	"bufio"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/storage"
	"github.com/scenewalk/scenewalk/pkg/core"
)

var _ storage.Backend = (*Manager)(nil)

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.ErrorIs(t, m.Connect(), ErrDisabled)
}

func TestWritePoint_WithoutConnect(t *testing.T) {
	t.Cleanup(viper.Reset)
	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.RecordSlotView(&core.SlotView{}))
}

func TestUnreachableServer_WritesBackupLineProtocol(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")
	viper.Set("influx.bucket", "journal_test")

	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.Init())
	assert.False(t, m.IsValid)
	assert.Equal(t, "journal_test", m.Bucket)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, m.StartSession(&core.Session{ID: "s1", Tour: "campus", StartedAt: at, Targets: 2}))
	require.NoError(t, m.RecordTrackingEvent(&core.TrackingEvent{Time: at, Target: 0, Action: core.TrackingActivated}))
	require.NoError(t, m.RecordSlotView(&core.SlotView{Time: at, Target: 0, Slot: 1, Label: "2/4"}))
	require.NoError(t, m.RecordGateUnlock(&core.GateUnlock{Time: at, Target: 0, Viewed: []int{0, 1, 2}}))
	require.NoError(t, m.RecordPartEvent(&core.PartEvent{Time: at, Target: 0, Part: 2, Action: core.PartRevealed}))
	require.NoError(t, m.RecordLoadEvent(&core.LoadEvent{Time: at, Kind: "part", Ref: "a0p2", Elapsed: 2 * time.Millisecond}))
	require.NoError(t, m.EndSession())
	require.NoError(t, m.Close())

	lines := readBackup(t, path)
	require.Len(t, lines, 7)
	for _, l := range lines {
		assert.Contains(t, l, "session=s1")
	}
	assert.True(t, strings.HasPrefix(lines[1], MeasurementTracking+","))
	assert.Contains(t, lines[1], "action=activated")
	assert.Contains(t, lines[3], "viewed=3i")
	assert.Contains(t, lines[5], "elapsed_ms=2")
	assert.Contains(t, lines[5], "failed=false")
	assert.Contains(t, lines[6], "duration_s=")
}
