// Package coordinator owns the targets of a tour and decides which one drives content.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scenewalk/scenewalk/internal/completion"
	"github.com/scenewalk/scenewalk/internal/loader"
	"github.com/scenewalk/scenewalk/internal/navigator"
	"github.com/scenewalk/scenewalk/internal/pose"
	"github.com/scenewalk/scenewalk/internal/scene"
	"github.com/scenewalk/scenewalk/internal/sequencer"
	"github.com/scenewalk/scenewalk/internal/timer"
	"github.com/scenewalk/scenewalk/internal/tour"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// ErrUnknownTarget is returned for a target id outside the tour.
var ErrUnknownTarget = errors.New("unknown target")

// DefaultNotReady is the not-ready notice used when a target defines none.
const DefaultNotReady = "Complete all %d scenes first!"

// Tracking is the image tracker. Arm creates the anchor for a target; Pose returns
// the latest raw world pose while the target is found.
type Tracking interface {
	Arm(id int) error
	Pose(id int) (pose.Pose, bool)
}

// Loader accepts asynchronous load requests. Results come back through Loaded.
type Loader interface {
	Request(req loader.Request)
}

// Display is the navigation HUD and notice surface.
type Display interface {
	ShowHUD(visible bool)
	SetStatus(label string)
	SetControls(prev, next, replay bool)
	Notice(msg string, d time.Duration)
}

// Journal receives session records. storage.Backend satisfies it.
type Journal interface {
	RecordTrackingEvent(e *core.TrackingEvent) error
	RecordSlotView(v *core.SlotView) error
	RecordGateUnlock(g *core.GateUnlock) error
	RecordPartEvent(e *core.PartEvent) error
	RecordLoadEvent(e *core.LoadEvent) error
}

// Config holds the tour and engine tunables.
type Config struct {
	Tour            *tour.Tour
	SmoothingAlpha  float64
	MaxFrameDelta   time.Duration
	NoticeDuration  time.Duration
	SkipFailedParts bool
}

// DefaultConfig returns the stock tunables for t.
func DefaultConfig(t *tour.Tour) Config {
	return Config{
		Tour:           t,
		SmoothingAlpha: pose.DefaultAlpha,
		MaxFrameDelta:  100 * time.Millisecond,
		NoticeDuration: 3 * time.Second,
	}
}

// Dependencies holds the collaborators of a Coordinator.
type Dependencies struct {
	Scheduler *timer.Scheduler
	Tracking  Tracking
	Loader    Loader
	Display   Display
	Journal   Journal
	Logger    *slog.Logger
}

// Target is one tracked marker and everything hanging off it.
type Target struct {
	id  int
	def tour.TargetDef

	root      *scene.Node
	occluders *scene.Node
	tracker   *completion.Tracker
	gate      *completion.Tracker
	nav       *navigator.Navigator
	smoother  *pose.Smoother

	initialized bool
	found       bool
	activated   bool
	snap        bool
}

// ID returns the target's position in the tour.
func (t *Target) ID() int { return t.id }

// Name returns the configured name.
func (t *Target) Name() string { return t.def.Name }

// Root returns the node that receives the smoothed pose.
func (t *Target) Root() *scene.Node { return t.root }

// Navigator returns the slot navigator, or nil before initialization.
func (t *Target) Navigator() *navigator.Navigator { return t.nav }

// Tracker returns the completion tracker, or nil when the target tracks nothing.
func (t *Target) Tracker() *completion.Tracker { return t.tracker }

// Initialized reports whether the target has been armed and its content requested.
func (t *Target) Initialized() bool { return t.initialized }

// Found reports whether the tracker currently sees the target.
func (t *Target) Found() bool { return t.found }

// GateOpen reports whether the gating target is complete.
func (t *Target) GateOpen() bool {
	return t.gate == nil || t.gate.IsComplete()
}

// Coordinator keeps at most one target active and routes commands to it.
// All methods must be called from the engine loop.
type Coordinator struct {
	cfg     Config
	deps    Dependencies
	log     *slog.Logger
	root    *scene.Node
	targets []*Target
	active  *Target

	hud         bool
	notice      string
	noticeTimer timer.Handle
}

// New builds every target shell. No target is initialized until Start.
func New(cfg Config, deps Dependencies) (*Coordinator, error) {
	if cfg.Tour == nil {
		return nil, tour.ErrNoTargets
	}
	if err := cfg.Tour.Validate(); err != nil {
		return nil, err
	}
	if _, err := pose.NewSmoother(cfg.SmoothingAlpha); err != nil {
		return nil, err
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("coordinator: scheduler is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Journal == nil {
		deps.Journal = nopJournal{}
	}
	if deps.Display == nil {
		deps.Display = nopDisplay{}
	}

	c := &Coordinator{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
		root: scene.NewNode(cfg.Tour.Name),
	}

	for i, def := range cfg.Tour.Targets {
		t := &Target{
			id:        i,
			def:       def,
			root:      scene.NewNode(def.Name),
			occluders: scene.NewNode(def.Name + "/occluders"),
		}
		t.root.SetVisible(false)
		t.root.Add(t.occluders)
		if len(def.Track) > 0 {
			t.tracker = completion.New(def.Track)
		}
		if def.Gate != nil {
			t.gate = c.targets[*def.Gate].tracker
		}
		c.root.Add(t.root)
		c.targets = append(c.targets, t)
	}
	for _, t := range c.targets {
		if t.tracker != nil {
			t.tracker.OnComplete(func() { c.gateOpened(t) })
		}
	}
	return c, nil
}

// Start initializes every ungated target. Gated targets wait for their trigger.
func (c *Coordinator) Start() {
	for _, t := range c.targets {
		if t.def.Gate == nil && !t.initialized {
			c.initTarget(t)
		}
	}
}

// Root returns the render root holding every target group.
func (c *Coordinator) Root() *scene.Node { return c.root }

// Len returns the number of targets.
func (c *Coordinator) Len() int { return len(c.targets) }

// Target returns target id.
func (c *Coordinator) Target(id int) *Target { return c.targets[id] }

// Active returns the active target id, or -1.
func (c *Coordinator) Active() int {
	if c.active == nil {
		return -1
	}
	return c.active.id
}

// Notice returns the notice currently shown, if any.
func (c *Coordinator) Notice() string { return c.notice }

// Found handles a tracker acquiring target id.
func (c *Coordinator) Found(id int) error {
	t, err := c.target(id)
	if err != nil {
		return err
	}
	wasFound := t.found
	t.found = true
	if !wasFound {
		t.snap = true
	}

	switch {
	case !t.GateOpen():
		msg := t.def.NotReady
		if msg == "" {
			msg = fmt.Sprintf(DefaultNotReady, t.gate.Need())
		}
		c.notify(msg)
		c.journalTracking(t, core.TrackingNotReady, msg)
		c.log.Debug("found ignored, gate closed", "target", t.def.Name)
	case !t.initialized:
		c.journalTracking(t, core.TrackingUnarmed, "")
		c.log.Debug("found ignored, target not initialized", "target", t.def.Name)
	case c.active == t:
		c.journalTracking(t, core.TrackingFound, "already active")
	case c.active != nil:
		c.journalTracking(t, core.TrackingBusy, c.active.def.Name)
		c.log.Debug("found ignored, another target active", "target", t.def.Name, "active", c.active.def.Name)
	default:
		c.activate(t)
	}
	return nil
}

// Lost handles a tracker losing target id. Slot and timer state are kept so a later
// Found resumes where the sequence is.
func (c *Coordinator) Lost(id int) error {
	t, err := c.target(id)
	if err != nil {
		return err
	}
	if !t.found {
		return nil
	}
	t.found = false

	detail := "inactive"
	if c.active == t {
		c.active = nil
		t.root.SetVisible(false)
		c.showHUD(false)
		detail = ""
	}
	c.journalTracking(t, core.TrackingLost, detail)
	return nil
}

// Next moves the active target forward. At a closed gate boundary it surfaces a notice.
func (c *Coordinator) Next() bool {
	t := c.active
	if t == nil {
		return false
	}
	if t.nav.Stalled() {
		msg := t.def.Stalled
		if msg == "" && t.tracker != nil {
			msg = fmt.Sprintf(DefaultNotReady, t.tracker.Need())
		}
		c.notify(msg)
		return false
	}
	if !t.nav.CanNext() {
		return false
	}
	return t.nav.GoTo(1)
}

// Prev moves the active target back.
func (c *Coordinator) Prev() bool {
	t := c.active
	if t == nil || !t.nav.CanPrev() {
		return false
	}
	return t.nav.GoTo(-1)
}

// Replay restarts the active composite.
func (c *Coordinator) Replay() bool {
	t := c.active
	if t == nil {
		return false
	}
	return t.nav.Replay()
}

// Loaded delivers a finished load. A failed part is recorded and never registered.
func (c *Coordinator) Loaded(res loader.Result) error {
	t, err := c.target(res.Target)
	if err != nil {
		return err
	}
	if !t.initialized {
		return fmt.Errorf("target %d: load result before initialization", res.Target)
	}
	c.journalLoad(res)

	switch res.Kind {
	case loader.KindPart:
		if res.Slot < 0 || res.Slot >= t.nav.Len() || t.nav.Slot(res.Slot).Composite() == nil {
			return fmt.Errorf("target %d slot %d: %w", res.Target, res.Slot, tour.ErrSlotIndex)
		}
		seq := t.nav.Slot(res.Slot).Composite()
		if res.Err != nil {
			c.log.Warn("part failed to load", "target", t.def.Name, "slot", res.Slot, "part", res.Part, "ref", res.Ref, "error", res.Err)
			err = seq.MarkFailed(res.Part)
		} else {
			err = seq.RegisterPart(res.Part, res.Asset.Node, res.Asset.Clips)
		}
	case loader.KindStatic:
		if res.Err != nil {
			c.log.Warn("slot failed to load", "target", t.def.Name, "slot", res.Slot, "ref", res.Ref, "error", res.Err)
			return nil
		}
		err = t.nav.Register(res.Slot, res.Asset.Node)
	case loader.KindOccluder:
		if res.Err != nil {
			c.log.Warn("occluder failed to load", "target", t.def.Name, "ref", res.Ref, "error", res.Err)
			return nil
		}
		res.Asset.Node.SetLayer(scene.LayerOccluder)
		t.occluders.Add(res.Asset.Node)
	default:
		return fmt.Errorf("unknown load kind %d", res.Kind)
	}
	if err != nil {
		return err
	}
	if c.active == t {
		t.nav.Refresh()
	}
	return nil
}

// Frame polls poses of found targets and advances animations of visible parts.
func (c *Coordinator) Frame(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	if c.cfg.MaxFrameDelta > 0 && dt > c.cfg.MaxFrameDelta {
		dt = c.cfg.MaxFrameDelta
	}

	for _, t := range c.targets {
		if !t.initialized {
			continue
		}
		if t.found && c.deps.Tracking != nil {
			if raw, ok := c.deps.Tracking.Pose(t.id); ok {
				var out pose.Pose
				if t.snap {
					out = t.smoother.Snap(raw)
					t.snap = false
				} else {
					out = t.smoother.Update(raw)
				}
				t.root.SetTransform(out)
			}
		}
		t.nav.Advance(dt)
	}
}

func (c *Coordinator) target(id int) (*Target, error) {
	if id < 0 || id >= len(c.targets) {
		return nil, fmt.Errorf("target %d: %w", id, ErrUnknownTarget)
	}
	return c.targets[id], nil
}

func (c *Coordinator) activate(t *Target) {
	for _, other := range c.targets {
		if other != t {
			other.root.SetVisible(false)
		}
	}
	c.active = t
	t.root.SetVisible(true)
	t.snap = true
	c.journalTracking(t, core.TrackingActivated, "")
	c.log.Info("target activated", "target", t.def.Name, "slot", t.nav.Index())

	if !t.activated {
		t.activated = true
		t.nav.Start()
	} else {
		t.nav.Resume()
	}
	c.showHUD(true)
	t.nav.Refresh()
}

func (c *Coordinator) initTarget(t *Target) {
	t.initialized = true
	if c.deps.Tracking != nil {
		if err := c.deps.Tracking.Arm(t.id); err != nil {
			c.log.Error("failed to arm target", "target", t.def.Name, "error", err)
		}
	}
	// alpha was validated in New
	t.smoother, _ = pose.NewSmoother(c.cfg.SmoothingAlpha)

	nav := navigator.New(t.def.Name, t.def.Label)
	nav.SetTracking(func() bool { return c.active == t })
	nav.SetDisplay(targetDisplay{c: c, t: t})
	nav.OnViewed(func(i int) { c.slotViewed(t, i) })
	nav.OnEnter(func(i int) { c.slotEntered(t, i) })
	t.nav = nav
	t.root.Add(nav.Root())

	var requests []loader.Request
	for si, sd := range t.def.Slots {
		opts := navigator.SlotOptions{Title: sd.Title}
		if sd.Gated && t.tracker != nil {
			opts.Gate = t.tracker
		}
		if t.def.Boundary != nil && *t.def.Boundary == si && t.tracker != nil {
			opts.Boundary = t.tracker
		}

		if !sd.Composite() {
			nav.AddStatic(fmt.Sprintf("%s/%d", t.def.Name, si), opts)
			requests = append(requests, loader.Request{Target: t.id, Slot: si, Kind: loader.KindStatic, Ref: sd.Static})
			continue
		}

		seq := sequencer.New(fmt.Sprintf("%s/%d", t.def.Name, si), sd.Parts(), sd.Options(c.cfg.SkipFailedParts), c.deps.Scheduler)
		slot := si
		seq.Observe(func(e sequencer.Event) { c.journalPart(t, slot, e) })
		nav.AddComposite(seq, opts)
		for pi, ref := range sd.Files {
			requests = append(requests, loader.Request{Target: t.id, Slot: si, Part: pi, Kind: loader.KindPart, Ref: ref})
		}
	}
	for _, ref := range t.def.Occluders {
		requests = append(requests, loader.Request{Target: t.id, Kind: loader.KindOccluder, Ref: ref})
	}

	c.journalTracking(t, core.TrackingArmed, "")
	c.log.Info("target initialized", "target", t.def.Name, "slots", nav.Len(), "requests", len(requests))

	if c.deps.Loader != nil {
		for _, req := range requests {
			c.deps.Loader.Request(req)
		}
	}
}

func (c *Coordinator) slotViewed(t *Target, i int) {
	c.record(c.deps.Journal.RecordSlotView(&core.SlotView{
		Time:   c.deps.Scheduler.Now(),
		Target: t.id,
		Slot:   i,
		Label:  t.nav.Label(),
	}))
	if t.tracker != nil {
		t.tracker.MarkViewed(i)
	}
}

func (c *Coordinator) slotEntered(t *Target, i int) {
	for _, d := range c.targets {
		if d.initialized || d.def.Gate == nil || *d.def.Gate != t.id {
			continue
		}
		if d.def.Trigger() == tour.InitOnSlot && d.def.InitSlot == i && d.GateOpen() {
			c.initTarget(d)
		}
	}
}

func (c *Coordinator) gateOpened(t *Target) {
	c.record(c.deps.Journal.RecordGateUnlock(&core.GateUnlock{
		Time:   c.deps.Scheduler.Now(),
		Target: t.id,
		Viewed: t.tracker.Viewed(),
	}))
	c.log.Info("gate unlocked", "target", t.def.Name)

	for _, other := range c.targets {
		if other.initialized && c.active == other {
			other.nav.Refresh()
		}
	}
	if t.def.Unlocked != "" {
		c.notify(t.def.Unlocked)
	}
	for _, d := range c.targets {
		if d.initialized || d.def.Gate == nil || *d.def.Gate != t.id {
			continue
		}
		if d.def.Trigger() == tour.InitOnGate {
			c.initTarget(d)
		}
	}
}

func (c *Coordinator) showHUD(v bool) {
	c.hud = v
	c.deps.Display.ShowHUD(v)
}

func (c *Coordinator) notify(msg string) {
	if msg == "" {
		return
	}
	c.deps.Scheduler.Cancel(c.noticeTimer)
	c.notice = msg
	c.deps.Display.Notice(msg, c.cfg.NoticeDuration)
	c.noticeTimer = c.deps.Scheduler.Schedule(c.cfg.NoticeDuration, func() { c.notice = "" })
}

func (c *Coordinator) journalTracking(t *Target, a core.TrackingAction, detail string) {
	c.record(c.deps.Journal.RecordTrackingEvent(&core.TrackingEvent{
		Time:   c.deps.Scheduler.Now(),
		Target: t.id,
		Action: a,
		Detail: detail,
	}))
}

func (c *Coordinator) journalPart(t *Target, slot int, e sequencer.Event) {
	var a core.PartAction
	switch e.Kind {
	case sequencer.Started:
		a = core.PartStarted
	case sequencer.Revealed:
		a = core.PartRevealed
	case sequencer.Hidden:
		a = core.PartHidden
	}
	c.record(c.deps.Journal.RecordPartEvent(&core.PartEvent{
		Time:   c.deps.Scheduler.Now(),
		Target: t.id,
		Slot:   slot,
		Part:   e.Part,
		Ref:    e.Ref,
		Action: a,
	}))
}

func (c *Coordinator) journalLoad(res loader.Result) {
	ev := &core.LoadEvent{
		Time:    c.deps.Scheduler.Now(),
		Target:  res.Target,
		Slot:    res.Slot,
		Part:    res.Part,
		Kind:    res.Kind.String(),
		Ref:     res.Ref,
		Elapsed: res.Elapsed,
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	c.record(c.deps.Journal.RecordLoadEvent(ev))
}

func (c *Coordinator) record(err error) {
	if err != nil {
		c.log.Warn("journal write failed", "error", err)
	}
}

// targetDisplay forwards navigation updates only while its target is active.
type targetDisplay struct {
	c *Coordinator
	t *Target
}

func (d targetDisplay) SetStatus(label string) {
	if d.c.active == d.t {
		d.c.deps.Display.SetStatus(label)
	}
}

func (d targetDisplay) SetControls(prev, next, replay bool) {
	if d.c.active == d.t {
		d.c.deps.Display.SetControls(prev, next, replay)
	}
}

type nopDisplay struct{}

func (nopDisplay) ShowHUD(bool)                 {}
func (nopDisplay) SetStatus(string)             {}
func (nopDisplay) SetControls(bool, bool, bool) {}
func (nopDisplay) Notice(string, time.Duration) {}

type nopJournal struct{}

func (nopJournal) RecordTrackingEvent(*core.TrackingEvent) error { return nil }
func (nopJournal) RecordSlotView(*core.SlotView) error           { return nil }
func (nopJournal) RecordGateUnlock(*core.GateUnlock) error       { return nil }
func (nopJournal) RecordPartEvent(*core.PartEvent) error         { return nil }
func (nopJournal) RecordLoadEvent(*core.LoadEvent) error         { return nil }
