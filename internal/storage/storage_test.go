// internal/storage/storage_test.go
package storage_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/storage"
	"github.com/scenewalk/scenewalk/pkg/core"
)

type countingBackend struct {
	calls map[string]int
	fail  error
}

func newCounting(fail error) *countingBackend {
	return &countingBackend{calls: map[string]int{}, fail: fail}
}

func (b *countingBackend) hit(name string) error {
	b.calls[name]++
	return b.fail
}

func (b *countingBackend) Init() error                                   { return b.hit("init") }
func (b *countingBackend) Close() error                                  { return b.hit("close") }
func (b *countingBackend) StartSession(*core.Session) error              { return b.hit("start") }
func (b *countingBackend) EndSession() error                             { return b.hit("end") }
func (b *countingBackend) RecordTrackingEvent(*core.TrackingEvent) error { return b.hit("tracking") }
func (b *countingBackend) RecordSlotView(*core.SlotView) error           { return b.hit("view") }
func (b *countingBackend) RecordGateUnlock(*core.GateUnlock) error       { return b.hit("unlock") }
func (b *countingBackend) RecordPartEvent(*core.PartEvent) error         { return b.hit("part") }
func (b *countingBackend) RecordLoadEvent(*core.LoadEvent) error         { return b.hit("load") }

type uploadingBackend struct {
	*countingBackend
}

func (uploadingBackend) ExportedFilePath() string            { return "/tmp/j.json.gz" }
func (uploadingBackend) ExportMetadata() core.UploadMetadata { return core.UploadMetadata{Tour: "t"} }

var _ storage.Backend = (*storage.Fanout)(nil)

func TestFanout_ForwardsToAll(t *testing.T) {
	a, b := newCounting(nil), newCounting(nil)
	f := storage.NewFanout(a, nil, b)
	require.Len(t, f.Backends(), 2)

	require.NoError(t, f.Init())
	require.NoError(t, f.StartSession(&core.Session{ID: "s"}))
	require.NoError(t, f.RecordTrackingEvent(&core.TrackingEvent{}))
	require.NoError(t, f.RecordSlotView(&core.SlotView{}))
	require.NoError(t, f.RecordGateUnlock(&core.GateUnlock{}))
	require.NoError(t, f.RecordPartEvent(&core.PartEvent{}))
	require.NoError(t, f.RecordLoadEvent(&core.LoadEvent{}))
	require.NoError(t, f.EndSession())
	require.NoError(t, f.Close())

	for _, cb := range []*countingBackend{a, b} {
		for _, name := range []string{"init", "start", "tracking", "view", "unlock", "part", "load", "end", "close"} {
			assert.Equal(t, 1, cb.calls[name], name)
		}
	}
}

func TestFanout_JoinsErrorsAndKeepsGoing(t *testing.T) {
	boom := errors.New("boom")
	a, b := newCounting(boom), newCounting(nil)
	f := storage.NewFanout(a, b)

	err := f.RecordSlotView(&core.SlotView{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, b.calls["view"])
}

func TestFanout_Uploadable(t *testing.T) {
	f := storage.NewFanout(newCounting(nil))
	_, ok := f.Uploadable()
	assert.False(t, ok)

	f = storage.NewFanout(newCounting(nil), uploadingBackend{newCounting(nil)})
	u, ok := f.Uploadable()
	require.True(t, ok)
	assert.Equal(t, "t", u.ExportMetadata().Tour)
}
