package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"

	"github.com/scenewalk/scenewalk/internal/api"
	"github.com/scenewalk/scenewalk/internal/config"
	"github.com/scenewalk/scenewalk/internal/coordinator"
	"github.com/scenewalk/scenewalk/internal/dispatcher"
	"github.com/scenewalk/scenewalk/internal/engine"
	"github.com/scenewalk/scenewalk/internal/loader"
	"github.com/scenewalk/scenewalk/internal/logging"
	"github.com/scenewalk/scenewalk/internal/monitor"
	"github.com/scenewalk/scenewalk/internal/session"
	"github.com/scenewalk/scenewalk/internal/sim"
	"github.com/scenewalk/scenewalk/internal/storage"
	"github.com/scenewalk/scenewalk/internal/timer"
	"github.com/scenewalk/scenewalk/internal/tour"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// playerOptions configures a live engine.
type playerOptions struct {
	Tour    *tour.Tour
	Session *core.Session // created from Tour when nil
	Started time.Time
	Sim     bool // fabricate assets instead of reading loader.assetDir
	Display coordinator.Display
	Meter   metric.Meter
	Logger  *slog.Logger
	ZLog    zerolog.Logger
}

// player is a running engine on the wall clock with its journal, loader pool and
// status monitor. Tracking comes from the keyboard through Tracker.
type player struct {
	Engine  *engine.Engine
	Tracker *sim.Tracker
	Session *session.Context
	Journal *storage.Fanout

	pool    *loader.Pool
	monitor *monitor.Service
	log     *slog.Logger
	cancel  context.CancelFunc
	done    chan error
}

func startPlayer(ctx context.Context, opts playerOptions) (*player, error) {
	t := opts.Tour
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Started.IsZero() {
		opts.Started = time.Now()
	}

	sc := session.NewContext()
	sess := opts.Session
	if sess == nil {
		sess = session.New(t.Name, len(t.Targets), t.SlotCount(), opts.Started)
	}
	sc.Set(sess)

	journal, err := newJournal(config.GetStorageConfig(), log, opts.ZLog, opts.Started)
	if err != nil {
		return nil, err
	}
	if err := journal.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	if err := journal.StartSession(sess); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	ec := config.GetEngineConfig()
	lc := config.GetLoaderConfig()

	var src loader.Source
	if opts.Sim {
		src = &loader.SimSource{Latency: 150 * time.Millisecond, Clip: 2 * time.Second}
	} else {
		src = loader.NewFileSource(lc.AssetDir)
	}

	var eng *engine.Engine
	pool := loader.NewPool(src, lc.Workers, func(res loader.Result) { eng.Loaded(res) }, log)

	sched := timer.New(opts.Started)
	tracker := sim.NewTracker()

	ccfg := coordinator.DefaultConfig(t)
	if ec.SmoothingAlpha > 0 {
		ccfg.SmoothingAlpha = ec.SmoothingAlpha
	}
	if ec.MaxFrameDelta > 0 {
		ccfg.MaxFrameDelta = ec.MaxFrameDelta
	}
	if ec.NoticeDuration > 0 {
		ccfg.NoticeDuration = ec.NoticeDuration
	}
	ccfg.SkipFailedParts = ec.SkipFailedParts

	display := opts.Display
	if display == nil {
		display = &engine.LogDisplay{Logger: log}
	}
	coord, err := coordinator.New(ccfg, coordinator.Dependencies{
		Scheduler: sched,
		Tracking:  tracker,
		Loader:    pool,
		Display:   display,
		Journal:   journal,
		Logger:    log,
	})
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(opts.ZLog), ec.QueueSize)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	eng, err = engine.New(engine.Config{FrameInterval: ec.FrameInterval}, engine.Dependencies{
		Coordinator: coord,
		Scheduler:   sched,
		Dispatcher:  d,
		Clock:       timer.SystemClock{},
		Session:     sess,
		Logger:      log,
	})
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	if opts.Meter != nil {
		if err := registerEngineMetrics(opts.Meter, eng, pool); err != nil {
			log.Warn("Failed to register engine metrics", "error", err)
		}
	}

	p := &player{
		Engine:  eng,
		Tracker: tracker,
		Session: sc,
		Journal: journal,
		pool:    pool,
		log:     log,
		done:    make(chan error, 1),
	}

	if mc := config.GetMonitorConfig(); mc.Enabled {
		p.monitor = monitor.NewService(monitor.Dependencies{
			Status:   eng.Status,
			DB:       journalDB(journal),
			Logger:   log,
			Path:     mc.Path,
			Interval: mc.Interval,
		})
		if err := p.monitor.Start(); err != nil {
			log.Error("Failed to start status monitor", "error", err)
			p.monitor = nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	pool.Start(runCtx)
	go func() { p.done <- eng.Run(runCtx) }()

	log.Info("Tour started", "tour", t.Name, "session", sess.ID, "targets", len(t.Targets))
	return p, nil
}

// Active returns the active target for log context.
func (p *player) Active() int {
	return p.Engine.Status().Active
}

// Found marks id as seen by the camera and tells the engine.
func (p *player) Found(id int) error {
	p.Tracker.SetFound(id, true)
	return p.Engine.Found(id)
}

// Lost marks id as out of view and tells the engine.
func (p *player) Lost(id int) error {
	p.Tracker.SetFound(id, false)
	return p.Engine.Lost(id)
}

func (p *player) Next() error   { return p.Engine.Next() }
func (p *player) Prev() error   { return p.Engine.Prev() }
func (p *player) Replay() error { return p.Engine.Replay() }

// Stop ends the loop, closes the session and uploads the export when configured.
func (p *player) Stop() error {
	p.cancel()
	runErr := <-p.done
	p.pool.Close()
	if p.monitor != nil {
		p.monitor.Stop()
	}

	ended := p.Session.End(time.Now())
	var errs []error
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		errs = append(errs, runErr)
	}
	if err := p.Journal.EndSession(); err != nil {
		errs = append(errs, fmt.Errorf("failed to end session: %w", err))
	}
	if config.GetBool("api.upload") {
		if err := uploadJournal(p.Journal, p.log); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.Journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
	}
	p.log.Info("Tour stopped", "session", ended.ID, "duration", ended.Duration(), "frames", p.Engine.Frames())
	return errors.Join(errs...)
}

func uploadJournal(journal *storage.Fanout, log *slog.Logger) error {
	u, ok := journal.Uploadable()
	if !ok {
		log.Info("Journal backend produces no export, skipping upload")
		return nil
	}
	client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		return fmt.Errorf("collection server unavailable: %w", err)
	}
	if err := client.UploadJournal(u); err != nil {
		return fmt.Errorf("failed to upload journal: %w", err)
	}
	log.Info("Journal uploaded", "path", u.ExportedFilePath())
	return nil
}

// journalDB returns the first GORM connection among the journal backends.
func journalDB(journal *storage.Fanout) *gorm.DB {
	for _, b := range journal.Backends() {
		if g, ok := b.(interface{ DB() *gorm.DB }); ok && g.DB() != nil {
			return g.DB()
		}
	}
	return nil
}
