package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/coordinator"
	"github.com/scenewalk/scenewalk/internal/dispatcher"
	"github.com/scenewalk/scenewalk/internal/loader"
	"github.com/scenewalk/scenewalk/internal/timer"
	"github.com/scenewalk/scenewalk/internal/tour"
	"github.com/scenewalk/scenewalk/pkg/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type recordingLoader struct {
	mu       sync.Mutex
	requests []loader.Request
}

func (l *recordingLoader) Request(req loader.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
}

func (l *recordingLoader) take() []loader.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.requests
	l.requests = nil
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func singleTour() *tour.Tour {
	return &tour.Tour{
		Name: "single",
		Targets: []tour.TargetDef{{
			Name: "a",
			Slots: []tour.SlotDef{
				{Files: []string{"p0", "p1"}, Timing: []int{0, 1000}},
				{Files: []string{"q0"}, Timing: []int{0}},
			},
		}},
	}
}

type fixture struct {
	e     *Engine
	d     *dispatcher.Dispatcher
	load  *recordingLoader
	start time.Time
}

func newFixture(t *testing.T, clock timer.Clock) *fixture {
	t.Helper()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if clock != nil {
		start = clock.Now()
	}
	sched := timer.New(start)
	load := &recordingLoader{}

	c, err := coordinator.New(coordinator.DefaultConfig(singleTour()), coordinator.Dependencies{
		Scheduler: sched,
		Loader:    load,
		Display:   &LogDisplay{},
	})
	require.NoError(t, err)

	d, err := dispatcher.New(nopLogger{}, 8)
	require.NoError(t, err)

	e, err := New(Config{FrameInterval: time.Millisecond}, Dependencies{
		Coordinator: c,
		Scheduler:   sched,
		Dispatcher:  d,
		Clock:       clock,
		Session:     &core.Session{ID: "s1"},
	})
	require.NoError(t, err)
	return &fixture{e: e, d: d, load: load, start: start}
}

func (f *fixture) deliverAll(t *testing.T) {
	t.Helper()
	for _, req := range f.load.take() {
		src := &loader.SimSource{}
		a, err := src.Load(context.Background(), req.Ref)
		require.NoError(t, err)
		f.e.Loaded(loader.Result{Request: req, Asset: a})
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Dependencies{})
	assert.Error(t, err)
}

func TestEngine_RegistersHandlers(t *testing.T) {
	f := newFixture(t, nil)
	for _, cmd := range []string{CmdFound, CmdLost, CmdLoaded, CmdNext, CmdPrev, CmdReplay} {
		assert.True(t, f.d.HasHandler(cmd), cmd)
	}
}

func TestEngine_EventsApplyOnStep(t *testing.T) {
	f := newFixture(t, nil)
	f.e.Start(f.start)
	f.deliverAll(t)
	require.NoError(t, f.e.Found(0))

	assert.Equal(t, -1, f.e.Status().Active, "nothing runs before the loop steps")
	assert.Equal(t, 4, f.d.Len())

	// timers scheduled while draining are due in the same step
	f.e.Step(f.start)
	st := f.e.Status()
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, "s1", st.Session)
	assert.Equal(t, "1/2", st.Label)
	assert.Equal(t, 0, st.QueueLen)
	assert.Equal(t, []string{"p0"}, st.Targets[0].Visible)
	assert.Equal(t, 1, st.PendingTimers)

	f.e.Step(f.start.Add(time.Second))
	st = f.e.Status()
	assert.Equal(t, []string{"p0", "p1"}, st.Targets[0].Visible)
	assert.True(t, st.Next)

	require.NoError(t, f.e.Next())
	f.e.Step(f.start.Add(1100 * time.Millisecond))
	assert.Equal(t, "2/2", f.e.Status().Label)

	require.NoError(t, f.e.Prev())
	require.NoError(t, f.e.Replay())
	require.NoError(t, f.e.Lost(0))
	f.e.Step(f.start.Add(1200 * time.Millisecond))
	st = f.e.Status()
	assert.Equal(t, -1, st.Active)
	assert.False(t, st.HUD)
	assert.Equal(t, uint64(4), f.e.Frames())
}

func TestEngine_EventTimersStartWhenHandled(t *testing.T) {
	f := newFixture(t, nil)
	f.e.Step(f.start)
	f.deliverAll(t)
	require.NoError(t, f.e.Found(0))

	// found arrives half a second after the previous frame
	found := f.start.Add(500 * time.Millisecond)
	f.e.Step(found)
	assert.Equal(t, []string{"p0"}, f.e.Status().Targets[0].Visible)

	f.e.Step(found.Add(999 * time.Millisecond))
	assert.Equal(t, []string{"p0"}, f.e.Status().Targets[0].Visible)

	f.e.Step(found.Add(time.Second))
	assert.Equal(t, []string{"p0", "p1"}, f.e.Status().Targets[0].Visible)
}

func TestEngine_QueueFullDropsNavigationButNotLoads(t *testing.T) {
	f := newFixture(t, nil)
	f.e.Start(f.start)

	var full error
	for i := 0; i < 10; i++ {
		if err := f.e.Next(); err != nil {
			full = err
		}
	}
	assert.True(t, errors.Is(full, dispatcher.ErrQueueFull))

	f.deliverAll(t)
	assert.Equal(t, 11, f.d.Len(), "load results bypass the limit")
}

func TestEngine_BadArgumentsAreLoggedNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.d.Post(dispatcher.Event{Command: CmdFound, Args: []string{"x"}}))
	require.NoError(t, f.d.Post(dispatcher.Event{Command: CmdLoaded, Payload: "nope"}))
	require.NoError(t, f.e.Found(7))

	assert.NotPanics(t, func() { f.e.Step(f.start) })
	assert.Equal(t, -1, f.e.Status().Active)
}

func TestEngine_RunHandlesPostsUntilCancelled(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	f := newFixture(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.e.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.load.take()) == 0 && f.e.Frames() > 0 },
		time.Second, time.Millisecond)
	require.NoError(t, f.e.Found(0))
	require.Eventually(t, func() bool { return f.e.Status().Active == 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}
