// Package engine runs the single logical thread: it drains posted events, fires due
// timers and renders a frame, then publishes a status snapshot.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/scenewalk/scenewalk/internal/coordinator"
	"github.com/scenewalk/scenewalk/internal/dispatcher"
	"github.com/scenewalk/scenewalk/internal/loader"
	"github.com/scenewalk/scenewalk/internal/timer"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// Commands understood by the engine loop.
const (
	CmdFound  = ":TARGET:FOUND:"
	CmdLost   = ":TARGET:LOST:"
	CmdLoaded = ":ASSET:LOADED:"
	CmdNext   = ":NAV:NEXT:"
	CmdPrev   = ":NAV:PREV:"
	CmdReplay = ":NAV:REPLAY:"
)

// Config holds loop tunables.
type Config struct {
	FrameInterval time.Duration
}

// Dependencies holds all dependencies for the engine.
type Dependencies struct {
	Coordinator *coordinator.Coordinator
	Scheduler   *timer.Scheduler
	Dispatcher  *dispatcher.Dispatcher
	Clock       timer.Clock
	Session     *core.Session
	Logger      *slog.Logger
}

// Engine owns the loop. Post methods are safe from any goroutine; Step and Run must
// not be called concurrently.
type Engine struct {
	cfg    Config
	deps   Dependencies
	log    *slog.Logger
	status atomic.Pointer[core.Status]

	started bool
	last    time.Time
	frames  atomic.Uint64
}

// New creates an engine and registers its handlers with the dispatcher.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.Coordinator == nil || deps.Scheduler == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("engine: coordinator, scheduler and dispatcher are required")
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	if deps.Clock == nil {
		deps.Clock = timer.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = &core.Session{}
	}

	e := &Engine{cfg: cfg, deps: deps, log: deps.Logger}
	e.RegisterHandlers(deps.Dispatcher)
	e.publish()
	return e, nil
}

// Status returns the latest published snapshot.
func (e *Engine) Status() core.Status {
	return *e.status.Load()
}

// Frames returns how many frames have been rendered.
func (e *Engine) Frames() uint64 {
	return e.frames.Load()
}

// Found posts a tracking acquisition.
func (e *Engine) Found(id int) error {
	return e.post(CmdFound, strconv.Itoa(id))
}

// Lost posts a tracking loss.
func (e *Engine) Lost(id int) error {
	return e.post(CmdLost, strconv.Itoa(id))
}

// Next posts a next-slot command.
func (e *Engine) Next() error { return e.post(CmdNext) }

// Prev posts a previous-slot command.
func (e *Engine) Prev() error { return e.post(CmdPrev) }

// Replay posts a replay command.
func (e *Engine) Replay() error { return e.post(CmdReplay) }

// Loaded posts a load result. It is the sink for loader.Pool.
func (e *Engine) Loaded(res loader.Result) {
	err := e.deps.Dispatcher.Post(dispatcher.Event{Command: CmdLoaded, Payload: res})
	if err != nil {
		e.log.Error("failed to post load result", "ref", res.Ref, "error", err)
	}
}

func (e *Engine) post(cmd string, args ...string) error {
	return e.deps.Dispatcher.Post(dispatcher.Event{Command: cmd, Args: args})
}

// Start initializes the coordinator once.
func (e *Engine) Start(now time.Time) {
	if e.started {
		return
	}
	e.started = true
	e.last = now
	e.deps.Coordinator.Start()
	e.publish()
}

// Step runs one loop iteration at now: drain events, fire due timers, render a frame.
func (e *Engine) Step(now time.Time) {
	if !e.started {
		e.Start(now)
	}
	e.drain(now)

	dt := now.Sub(e.last)
	e.last = now
	e.deps.Coordinator.Frame(dt)
	e.frames.Add(1)
	e.publish()
}

// Run drives Step from the frame ticker until ctx is done. Posted events are
// handled between frames as soon as they arrive.
func (e *Engine) Run(ctx context.Context) error {
	e.Start(e.deps.Clock.Now())

	ticker := time.NewTicker(e.cfg.FrameInterval)
	defer ticker.Stop()

	e.log.Info("engine running", "frameInterval", e.cfg.FrameInterval, "session", e.deps.Session.ID)
	for {
		select {
		case <-ctx.Done():
			e.deps.Dispatcher.Drain()
			e.publish()
			e.log.Info("engine stopped", "frames", e.frames.Load())
			return nil
		case <-ticker.C:
			e.Step(e.deps.Clock.Now())
		case <-e.deps.Dispatcher.Ready():
			e.drain(e.deps.Clock.Now())
			e.publish()
		}
	}
}

// drain handles posted events with the scheduler clock at now, so timers they
// schedule are measured from the moment they are handled.
func (e *Engine) drain(now time.Time) {
	e.deps.Scheduler.Advance(now)
	e.deps.Dispatcher.Drain()
	e.deps.Scheduler.Advance(now)
}

func (e *Engine) publish() {
	st := e.deps.Coordinator.Status()
	st.Session = e.deps.Session.ID
	st.QueueLen = e.deps.Dispatcher.Len()
	st.PendingTimers = e.deps.Scheduler.Pending()
	e.status.Store(&st)
}
