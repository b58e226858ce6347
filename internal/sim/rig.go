package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"

	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/coordinator"
	"github.com/scenewalk/scenewalk/internal/dispatcher"
	"github.com/scenewalk/scenewalk/internal/engine"
	"github.com/scenewalk/scenewalk/internal/loader"
	"github.com/scenewalk/scenewalk/internal/logging"
	"github.com/scenewalk/scenewalk/internal/timer"
	"github.com/scenewalk/scenewalk/internal/tour"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// Options configures a Rig.
type Options struct {
	Tour    *tour.Tour
	Engine  config.EngineConfig
	Source  loader.Source // defaults to an instant SimSource
	Journal coordinator.Journal
	Display coordinator.Display
	Session *core.Session
	Start   time.Time

	Logger         *slog.Logger
	DispatchLogger dispatcher.Logger
}

// Rig is a complete engine wired to the scripted tracker and clock, with loads
// completing inline.
type Rig struct {
	Engine      *engine.Engine
	Coordinator *coordinator.Coordinator
	Tracker     *Tracker
	Clock       *Clock
	Runner      *Runner
}

// NewRig wires a Rig.
func NewRig(opts Options) (*Rig, error) {
	if opts.Tour == nil {
		return nil, fmt.Errorf("sim: tour is required")
	}
	if opts.Start.IsZero() {
		opts.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.Source == nil {
		opts.Source = &loader.SimSource{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DispatchLogger == nil {
		opts.DispatchLogger = logging.NewDispatcherLogger(zerolog.Nop())
	}
	if opts.Display == nil {
		opts.Display = &engine.LogDisplay{Logger: opts.Logger}
	}

	clock := NewClock(opts.Start)
	tracker := NewTracker()
	sched := timer.New(opts.Start)

	var eng *engine.Engine
	ld := &loader.Inline{Source: opts.Source, Sink: func(res loader.Result) { eng.Loaded(res) }}

	ccfg := coordinator.DefaultConfig(opts.Tour)
	if opts.Engine.SmoothingAlpha > 0 {
		ccfg.SmoothingAlpha = opts.Engine.SmoothingAlpha
	}
	if opts.Engine.MaxFrameDelta > 0 {
		ccfg.MaxFrameDelta = opts.Engine.MaxFrameDelta
	}
	if opts.Engine.NoticeDuration > 0 {
		ccfg.NoticeDuration = opts.Engine.NoticeDuration
	}
	ccfg.SkipFailedParts = opts.Engine.SkipFailedParts

	coord, err := coordinator.New(ccfg, coordinator.Dependencies{
		Scheduler: sched,
		Tracking:  tracker,
		Loader:    ld,
		Display:   opts.Display,
		Journal:   opts.Journal,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	d, err := dispatcher.New(opts.DispatchLogger, opts.Engine.QueueSize)
	if err != nil {
		return nil, err
	}

	eng, err = engine.New(engine.Config{FrameInterval: opts.Engine.FrameInterval}, engine.Dependencies{
		Coordinator: coord,
		Scheduler:   sched,
		Dispatcher:  d,
		Clock:       clock,
		Session:     opts.Session,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	frame := opts.Engine.FrameInterval
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	return &Rig{
		Engine:      eng,
		Coordinator: coord,
		Tracker:     tracker,
		Clock:       clock,
		Runner: &Runner{
			Engine:  eng,
			Tracker: tracker,
			Clock:   clock,
			Frame:   frame,
			Logger:  opts.Logger,
		},
	}, nil
}
