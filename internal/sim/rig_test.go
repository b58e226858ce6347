package sim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/parser"
	"github.com/scenewalk/scenewalk/internal/storage/memory"
	"github.com/scenewalk/scenewalk/internal/tour"
	"github.com/scenewalk/scenewalk/pkg/core"
)

const campusWalk = `
# the building marker is seen before any scene
found 1
expect active none
expect notice Complete all 3 scenes first!
lost 1

found 0
expect active 0
expect hud on
expect label 1/4
expect visible 0 Sahne1.1/gunes.gltf
wait 11s
expect viewed 0 1
next
expect label 2/4
wait 7s
next
expect label 3/4
expect complete 0 true
expect notice All scenes complete! Guide unlocked.
expect gate 1 open
wait 6s
next
expect label Guide: Find the Building
expect slot 0 3

lost 0
expect hud off
expect active none
found 1
expect active 1
expect label Building 1/3
`

func parse(t *testing.T, script string) []parser.Step {
	t.Helper()
	steps, err := parser.NewParser(nil).ParseScript(strings.NewReader(script))
	require.NoError(t, err)
	return steps
}

func TestRig_DefaultTourWalkthrough(t *testing.T) {
	journal := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, journal.Init())
	require.NoError(t, journal.StartSession(&core.Session{ID: "s1", Tour: "campus"}))

	rig, err := NewRig(Options{
		Tour:    tour.Default(),
		Journal: journal,
		Session: &core.Session{ID: "s1"},
	})
	require.NoError(t, err)

	steps := parse(t, campusWalk)
	rep, err := rig.Runner.Run(context.Background(), steps)
	require.NoError(t, err)

	assert.Equal(t, len(steps), rep.Steps)
	assert.Equal(t, 18, rep.Expectations)
	assert.Equal(t, "Building 1/3", rep.Final.Label)
	assert.Equal(t, "s1", rep.Final.Session)
	assert.True(t, rig.Tracker.Armed(1))

	counts := journal.Counts()
	assert.Equal(t, 5, counts["views"])
	assert.Equal(t, 1, counts["unlocks"])
	assert.Equal(t, 20, counts["loads"])
}

func TestRig_NextBlockedUntilPartsVisible(t *testing.T) {
	rig, err := NewRig(Options{Tour: tour.Default()})
	require.NoError(t, err)

	_, err = rig.Runner.Run(context.Background(), parse(t, `
found 0
wait 10s
next
expect label 2/4
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExpectation))
	assert.Contains(t, err.Error(), "line 5")
	assert.Contains(t, err.Error(), `got "1/4"`)
}

func TestRig_LostKeepsTimersRunning(t *testing.T) {
	rig, err := NewRig(Options{Tour: tour.Default()})
	require.NoError(t, err)

	_, err = rig.Runner.Run(context.Background(), parse(t, `
found 0
lost 0
wait 11s
found 0
expect visible 0 Sahne1.1/gunes.gltf Sahne1.1/Bina.gltf Sahne1.3/BarV2-1.gltf Sahne1.2/Pencere1.gltf
next
expect label 2/4
`))
	require.NoError(t, err)
}

func TestRig_FailedPartsWaitByDefault(t *testing.T) {
	failing := tour.Default()
	src := failingSource("Sahne1.1/Bina.gltf")

	rig, err := NewRig(Options{Tour: failing, Source: src})
	require.NoError(t, err)
	_, err = rig.Runner.Run(context.Background(), parse(t, `
found 0
wait 20s
next
expect label 1/4
`))
	require.NoError(t, err)

	rig, err = NewRig(Options{Tour: failing, Source: src, Engine: config.EngineConfig{SkipFailedParts: true}})
	require.NoError(t, err)
	_, err = rig.Runner.Run(context.Background(), parse(t, `
found 0
wait 20s
next
expect label 2/4
`))
	require.NoError(t, err)
}

func TestRig_CancelledContext(t *testing.T) {
	rig, err := NewRig(Options{Tour: tour.Default()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rig.Runner.Run(ctx, parse(t, "found 0\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRig_RequiresTour(t *testing.T) {
	_, err := NewRig(Options{})
	assert.Error(t, err)
}
