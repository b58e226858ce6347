// Package navigator moves through the ordered slots of one target.
package navigator

import (
	"fmt"
	"time"

	"github.com/scenewalk/scenewalk/internal/scene"
	"github.com/scenewalk/scenewalk/internal/sequencer"
)

// DefaultLabel renders the current slot number and the slot count.
const DefaultLabel = "%d/%d"

// Gate is a monotonic completion predicate.
type Gate interface {
	IsComplete() bool
}

// Display receives the status label and control enablement.
type Display interface {
	SetStatus(label string)
	SetControls(prev, next, replay bool)
}

type nopDisplay struct{}

func (nopDisplay) SetStatus(string)             {}
func (nopDisplay) SetControls(bool, bool, bool) {}

// SlotOptions configures gating and presentation of a slot.
type SlotOptions struct {
	// Title replaces the numeric label while the slot is current and open.
	Title string
	// Gate keeps the slot unreachable until complete.
	Gate Gate
	// Boundary keeps next disabled on this slot until complete.
	Boundary Gate
}

// Slot is one navigable position. Slots are owned by their Navigator.
type Slot struct {
	index     int
	opts      SlotOptions
	root      *scene.Node
	composite *sequencer.Sequencer
	loaded    bool
	viewed    bool
}

// Index returns the slot position.
func (s *Slot) Index() int { return s.index }

// Root returns the slot container node.
func (s *Slot) Root() *scene.Node { return s.root }

// Composite returns the slot's sequence, or nil for a static slot.
func (s *Slot) Composite() *sequencer.Sequencer { return s.composite }

// Loaded reports whether the slot has content to show.
func (s *Slot) Loaded() bool { return s.loaded }

// Viewed reports whether the slot has been shown at least once.
func (s *Slot) Viewed() bool { return s.viewed }

// Title returns the configured title.
func (s *Slot) Title() string { return s.opts.Title }

func (s *Slot) open() bool {
	return s.opts.Gate == nil || s.opts.Gate.IsComplete()
}

func (s *Slot) eligible() bool {
	return s.loaded && s.open()
}

// Navigator tracks the current slot of one target and runs slot lifecycles.
type Navigator struct {
	name    string
	label   string
	root    *scene.Node
	slots   []*Slot
	index   int
	last    int
	started bool

	tracked  func() bool
	display  Display
	onViewed func(i int)
	onEnter  func(i int)
}

// New creates an empty navigator. An empty label format selects DefaultLabel.
func New(name, label string) *Navigator {
	if label == "" {
		label = DefaultLabel
	}
	return &Navigator{
		name:    name,
		label:   label,
		root:    scene.NewNode(name),
		last:    -1,
		tracked: func() bool { return false },
		display: nopDisplay{},
	}
}

// SetTracking sets the predicate reporting whether the owning target is tracked.
func (n *Navigator) SetTracking(fn func() bool) { n.tracked = fn }

// SetDisplay sets the status sink.
func (n *Navigator) SetDisplay(d Display) { n.display = d }

// OnViewed registers a callback for the first view of each slot.
func (n *Navigator) OnViewed(fn func(i int)) { n.onViewed = fn }

// OnEnter registers a callback run after a slot becomes current.
func (n *Navigator) OnEnter(fn func(i int)) { n.onEnter = fn }

// Root returns the node holding every slot container.
func (n *Navigator) Root() *scene.Node { return n.root }

// Len returns the number of slots.
func (n *Navigator) Len() int { return len(n.slots) }

// Index returns the current slot position.
func (n *Navigator) Index() int { return n.index }

// Slot returns slot i.
func (n *Navigator) Slot(i int) *Slot { return n.slots[i] }

// Current returns the current slot, or nil when there are none.
func (n *Navigator) Current() *Slot {
	if len(n.slots) == 0 {
		return nil
	}
	return n.slots[n.index]
}

// Started reports whether the first slot lifecycle has run.
func (n *Navigator) Started() bool { return n.started }

// AddComposite appends a slot backed by seq. Its container exists immediately so the
// slot counts as loaded while its parts are still loading.
func (n *Navigator) AddComposite(seq *sequencer.Sequencer, opts SlotOptions) *Slot {
	s := &Slot{
		index:     len(n.slots),
		opts:      opts,
		root:      seq.Root(),
		composite: seq,
		loaded:    true,
	}
	seq.Bind(slotHost{n: n, i: s.index})
	seq.OnChange(func() {
		if n.index == s.index {
			n.Refresh()
		}
	})
	s.root.SetVisible(false)
	n.root.Add(s.root)
	n.slots = append(n.slots, s)
	return s
}

// AddStatic appends a single-content slot that stays unloaded until Register.
func (n *Navigator) AddStatic(name string, opts SlotOptions) *Slot {
	s := &Slot{
		index: len(n.slots),
		opts:  opts,
		root:  scene.NewNode(name),
	}
	s.root.SetVisible(false)
	n.root.Add(s.root)
	n.slots = append(n.slots, s)
	return s
}

// Register attaches loaded content to static slot i.
func (n *Navigator) Register(i int, node *scene.Node) error {
	if i < 0 || i >= len(n.slots) {
		return fmt.Errorf("%s slot %d: out of range", n.name, i)
	}
	s := n.slots[i]
	if s.composite != nil {
		return fmt.Errorf("%s slot %d: composite slots register parts", n.name, i)
	}
	node.SetLayer(scene.LayerContent)
	s.root.Add(node)
	s.loaded = true
	if n.started {
		n.sync()
	} else {
		n.Refresh()
	}
	return nil
}

// Start runs the lifecycle of the current slot for the first time.
func (n *Navigator) Start() {
	if n.started {
		return
	}
	n.started = true
	n.sync()
}

// Resume restarts the current composite if it is not running.
func (n *Navigator) Resume() {
	if !n.started {
		n.Start()
		return
	}
	if cur := n.Current(); cur != nil && cur.composite != nil && n.last == n.index {
		cur.composite.StartIfReady()
	}
	n.Refresh()
}

// GoTo moves one eligible slot forward (delta >= 0) or backward, wrapping around.
// Unloaded and gated-closed slots are skipped. It reports whether the index changed.
func (n *Navigator) GoTo(delta int) bool {
	if !n.anyLoaded() {
		return false
	}
	dir := 1
	if delta < 0 {
		dir = -1
	}
	next := n.nextEligible(n.index, dir)
	if next == n.index {
		n.Refresh()
		return false
	}
	n.index = next
	n.sync()
	return true
}

// Replay restarts the current composite. Static slots are left alone.
func (n *Navigator) Replay() bool {
	cur := n.Current()
	if cur == nil || cur.composite == nil {
		return false
	}
	cur.composite.OnLeave()
	cur.composite.OnEnter()
	n.Refresh()
	return true
}

// CanPrev reports whether previous is enabled.
func (n *Navigator) CanPrev() bool {
	return n.index > 0
}

// CanNext reports whether next is enabled.
func (n *Navigator) CanNext() bool {
	cur := n.Current()
	if cur == nil {
		return false
	}
	if cur.composite != nil && !cur.composite.AllPermanentPartsVisible() {
		return false
	}
	if n.Stalled() {
		return false
	}
	for i := n.index + 1; i < len(n.slots); i++ {
		if n.slots[i].eligible() {
			return true
		}
	}
	return false
}

// CanReplay reports whether the current slot is a composite.
func (n *Navigator) CanReplay() bool {
	cur := n.Current()
	return cur != nil && cur.composite != nil
}

// Stalled reports whether the current slot is a gate boundary that is still closed.
func (n *Navigator) Stalled() bool {
	cur := n.Current()
	return cur != nil && cur.opts.Boundary != nil && !cur.opts.Boundary.IsComplete()
}

// Label renders the status text for the current slot.
func (n *Navigator) Label() string {
	cur := n.Current()
	if cur == nil {
		return fmt.Sprintf(n.label, 0, 0)
	}
	if cur.opts.Title != "" && cur.loaded && cur.open() {
		return cur.opts.Title
	}
	shown := 0
	if cur.loaded {
		shown = n.index + 1
	}
	return fmt.Sprintf(n.label, shown, len(n.slots))
}

// Refresh pushes the label and control state to the display.
func (n *Navigator) Refresh() {
	n.display.SetStatus(n.Label())
	n.display.SetControls(n.CanPrev(), n.CanNext(), n.CanReplay())
}

// Advance moves animation players of visible parts in every composite slot.
func (n *Navigator) Advance(dt time.Duration) {
	for _, s := range n.slots {
		if s.composite != nil {
			s.composite.Advance(dt)
		}
	}
}

func (n *Navigator) sync() {
	for i, s := range n.slots {
		s.root.SetVisible(i == n.index)
	}
	cur := n.Current()
	if cur != nil && cur.loaded && n.last != n.index {
		if n.last >= 0 {
			if prev := n.slots[n.last]; prev.composite != nil {
				prev.composite.OnLeave()
			}
		}
		n.last = n.index
		if cur.composite != nil {
			cur.composite.OnEnter()
		}
		if !cur.viewed {
			cur.viewed = true
			if n.onViewed != nil {
				n.onViewed(cur.index)
			}
		}
		if n.onEnter != nil {
			n.onEnter(cur.index)
		}
	}
	n.Refresh()
}

func (n *Navigator) anyLoaded() bool {
	for _, s := range n.slots {
		if s.loaded {
			return true
		}
	}
	return false
}

func (n *Navigator) nextEligible(from, dir int) int {
	total := len(n.slots)
	i := from
	for step := 0; step < total; step++ {
		i = (i + dir + total) % total
		if i == from {
			break
		}
		if n.slots[i].eligible() {
			return i
		}
	}
	return from
}

type slotHost struct {
	n *Navigator
	i int
}

func (h slotHost) SlotActive() bool {
	return h.n.started && h.n.index == h.i && h.n.last == h.i
}

func (h slotHost) Tracked() bool {
	return h.n.tracked()
}
