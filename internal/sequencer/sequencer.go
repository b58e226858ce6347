// Package sequencer runs the timed reveal/hide schedule of one composite slot.
package sequencer

import (
	"errors"
	"fmt"
	"time"

	"github.com/scenewalk/scenewalk/internal/scene"
	"github.com/scenewalk/scenewalk/internal/timer"
)

var (
	// ErrPartIndex is returned for a part index outside the schedule.
	ErrPartIndex = errors.New("part index out of range")
	// ErrPartRegistered is returned when a part is registered twice.
	ErrPartRegistered = errors.New("part already registered")
)

// State is the lifecycle state of a sequence.
type State int

const (
	Idle State = iota
	Running
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// Scheduler is the subset of the timer service a sequence needs.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) timer.Handle
	CancelAll(hs []timer.Handle)
}

// Host answers whether the owning slot is current and its target tracked.
type Host interface {
	SlotActive() bool
	Tracked() bool
}

// PartSpec is the authored schedule entry for one part.
type PartSpec struct {
	Ref       string
	At        time.Duration // absolute authored reveal time
	HideAfter time.Duration // 0 keeps the part visible
	Pinned    bool          // exempt from exclusive hiding even with auto-hide
}

// Options configures reset and exclusivity behavior.
type Options struct {
	ResetOnEnter bool
	ResetOnLeave bool
	Exclusive    bool
	// SkipFailed lets a sequence start once every part has either loaded or failed.
	SkipFailed bool
}

// DefaultOptions resets on both enter and leave and is not exclusive.
func DefaultOptions() Options {
	return Options{ResetOnEnter: true, ResetOnLeave: true}
}

// EventKind classifies sequence notifications.
type EventKind int

const (
	Started EventKind = iota
	Revealed
	Hidden
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Revealed:
		return "revealed"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Event reports a reveal, hide or start. Part is -1 for Started.
type Event struct {
	Kind EventKind
	Part int
	Ref  string
}

type part struct {
	spec   PartSpec
	node   *scene.Node
	mixer  *scene.Mixer
	failed bool
}

func (p *part) visible() bool {
	return p.node != nil && p.node.Visible()
}

// permanent parts survive exclusive reveals.
func (p *part) permanent() bool {
	return p.spec.HideAfter == 0 || p.spec.Pinned
}

// Sequencer owns the parts of one composite slot and their timers.
type Sequencer struct {
	name  string
	root  *scene.Node
	parts []*part
	opts  Options
	sched Scheduler
	host  Host

	timers  []timer.Handle
	started bool
	loaded  int
	failed  int

	observer func(Event)
	onChange func()
}

// New creates an idle sequence. Its root node is visible; parts attach under it hidden.
func New(name string, specs []PartSpec, opts Options, sched Scheduler) *Sequencer {
	s := &Sequencer{
		name:  name,
		root:  scene.NewNode(name),
		parts: make([]*part, len(specs)),
		opts:  opts,
		sched: sched,
	}
	for i, spec := range specs {
		s.parts[i] = &part{spec: spec}
	}
	return s
}

// Bind sets the host consulted for slot activity and tracking.
func (s *Sequencer) Bind(h Host) { s.host = h }

// Observe registers a callback for reveal, hide and start events.
func (s *Sequencer) Observe(fn func(Event)) { s.observer = fn }

// OnChange registers a callback run after any visibility change.
func (s *Sequencer) OnChange(fn func()) { s.onChange = fn }

// Name returns the sequence name.
func (s *Sequencer) Name() string { return s.name }

// Root returns the container node holding every part.
func (s *Sequencer) Root() *scene.Node { return s.root }

// Len returns the number of scheduled parts.
func (s *Sequencer) Len() int { return len(s.parts) }

// Spec returns the schedule entry of part i.
func (s *Sequencer) Spec(i int) PartSpec { return s.parts[i].spec }

// Node returns part i's node, or nil while it is loading.
func (s *Sequencer) Node(i int) *scene.Node { return s.parts[i].node }

// Loaded returns how many parts have registered.
func (s *Sequencer) Loaded() int { return s.loaded }

// Started reports whether the sequence has been started since the last reset.
func (s *Sequencer) Started() bool { return s.started }

// State derives the lifecycle state.
func (s *Sequencer) State() State {
	switch {
	case !s.started:
		return Idle
	case s.AllPermanentPartsVisible():
		return Settled
	default:
		return Running
	}
}

// RegisterPart stores a freshly loaded part hidden under the root and starts the
// sequence if the slot is current, the target tracked and every part present.
func (s *Sequencer) RegisterPart(i int, node *scene.Node, clips []scene.Clip) error {
	if i < 0 || i >= len(s.parts) {
		return fmt.Errorf("%s part %d: %w", s.name, i, ErrPartIndex)
	}
	p := s.parts[i]
	if p.node != nil {
		return fmt.Errorf("%s part %d: %w", s.name, i, ErrPartRegistered)
	}
	if p.failed {
		p.failed = false
		s.failed--
	}

	node.SetVisible(false)
	node.SetLayer(scene.LayerContent)
	node.SetClips(clips)
	s.root.Add(node)
	p.node = node
	p.mixer = scene.NewMixer(clips)
	s.loaded++

	if s.host != nil && s.host.SlotActive() && s.host.Tracked() && s.ready() {
		s.StartIfReady()
	}
	return nil
}

// MarkFailed records that part i will never load.
func (s *Sequencer) MarkFailed(i int) error {
	if i < 0 || i >= len(s.parts) {
		return fmt.Errorf("%s part %d: %w", s.name, i, ErrPartIndex)
	}
	p := s.parts[i]
	if p.node != nil || p.failed {
		return nil
	}
	p.failed = true
	s.failed++

	if s.opts.SkipFailed && s.host != nil && s.host.SlotActive() && s.host.Tracked() {
		s.StartIfReady()
	}
	return nil
}

func (s *Sequencer) ready() bool {
	resolved := s.loaded
	if s.opts.SkipFailed {
		resolved += s.failed
	}
	return resolved >= len(s.parts)
}

// Start schedules every part relative to the first part's authored time.
// It is a no-op when already started or while parts are still loading.
func (s *Sequencer) Start() bool {
	if s.started || !s.ready() {
		return false
	}
	s.started = true
	s.cancelTimers()

	var first time.Duration
	if len(s.parts) > 0 {
		first = s.parts[0].spec.At
	}
	for i, p := range s.parts {
		rel := p.spec.At - first
		if rel < 0 {
			rel = 0
		}
		s.timers = append(s.timers, s.sched.Schedule(rel, func() { s.revealPart(i) }))
	}
	s.emit(Event{Kind: Started, Part: -1})
	s.changed()
	return true
}

// StartIfReady starts the sequence when the target is tracked.
func (s *Sequencer) StartIfReady() bool {
	if s.host != nil && !s.host.Tracked() {
		return false
	}
	if s.started {
		return false
	}
	return s.Start()
}

// OnEnter runs when the slot becomes current.
func (s *Sequencer) OnEnter() {
	if s.opts.ResetOnEnter {
		s.cancelTimers()
		s.hideAll()
		s.started = false
	}
	s.StartIfReady()
}

// OnLeave runs when the slot stops being current. Pending timers are always cancelled.
func (s *Sequencer) OnLeave() {
	s.cancelTimers()
	if s.opts.ResetOnLeave {
		s.hideAll()
	}
	s.started = false
}

// AllPermanentPartsVisible reports whether every part without auto-hide is showing.
// Parts that have not loaded count as satisfied.
func (s *Sequencer) AllPermanentPartsVisible() bool {
	for _, p := range s.parts {
		if p.node == nil || p.spec.HideAfter > 0 {
			continue
		}
		if !p.node.Visible() {
			return false
		}
	}
	return true
}

// Advance moves the animation players of effectively visible parts.
func (s *Sequencer) Advance(dt time.Duration) {
	for _, p := range s.parts {
		if p.node != nil && p.node.EffectiveVisible() {
			p.mixer.Advance(dt)
		}
	}
}

// Visible returns the indices of visible parts.
func (s *Sequencer) Visible() []int {
	var out []int
	for i, p := range s.parts {
		if p.visible() {
			out = append(out, i)
		}
	}
	return out
}

// Players returns part i's animation players, or nil while it is loading.
func (s *Sequencer) Players(i int) []*scene.Player {
	if s.parts[i].mixer == nil {
		return nil
	}
	return s.parts[i].mixer.Players()
}

func (s *Sequencer) revealPart(i int) {
	p := s.parts[i]
	if s.opts.Exclusive {
		for j, other := range s.parts {
			if j != i && other.visible() && !other.permanent() {
				s.hide(j)
			}
		}
	}
	if p.node == nil {
		s.changed()
		return
	}

	p.node.SetVisible(true)
	p.mixer.Play()
	if p.spec.HideAfter > 0 {
		s.timers = append(s.timers, s.sched.Schedule(p.spec.HideAfter, func() { s.hidePart(i) }))
	}
	s.emit(Event{Kind: Revealed, Part: i, Ref: p.spec.Ref})
	s.changed()
}

func (s *Sequencer) hidePart(i int) {
	if !s.parts[i].visible() {
		return
	}
	s.hide(i)
	s.changed()
}

func (s *Sequencer) hide(i int) {
	p := s.parts[i]
	p.node.SetVisible(false)
	p.mixer.Stop()
	s.emit(Event{Kind: Hidden, Part: i, Ref: p.spec.Ref})
}

func (s *Sequencer) hideAll() {
	for _, p := range s.parts {
		if p.node != nil {
			p.node.SetVisible(false)
			p.mixer.Stop()
		}
	}
}

func (s *Sequencer) cancelTimers() {
	s.sched.CancelAll(s.timers)
	s.timers = nil
}

func (s *Sequencer) emit(e Event) {
	if s.observer != nil {
		s.observer(e)
	}
}

func (s *Sequencer) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
