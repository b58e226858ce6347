package coordinator

import (
	"github.com/scenewalk/scenewalk/internal/scene"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// HUD reports whether the navigation UI is showing.
func (c *Coordinator) HUD() bool { return c.hud }

// Status builds a snapshot of coordinator state. Session, queue and timer fields are
// left for the engine to fill.
func (c *Coordinator) Status() core.Status {
	st := core.Status{
		Time:    c.deps.Scheduler.Now(),
		Active:  c.Active(),
		HUD:     c.hud,
		Notice:  c.notice,
		Targets: make([]core.TargetStatus, 0, len(c.targets)),
	}
	if t := c.active; t != nil {
		st.Label = t.nav.Label()
		st.Prev = t.nav.CanPrev()
		st.Next = t.nav.CanNext()
		st.Replay = t.nav.CanReplay()
	}

	for _, t := range c.targets {
		ts := core.TargetStatus{
			ID:          t.id,
			Name:        t.def.Name,
			Initialized: t.initialized,
			Tracked:     t.found,
			GateOpen:    t.GateOpen(),
			Slots:       len(t.def.Slots),
			Viewed:      []int{},
		}
		if t.tracker != nil {
			ts.Viewed = t.tracker.Viewed()
			ts.Complete = t.tracker.IsComplete()
		}
		if t.nav != nil {
			ts.Slot = t.nav.Index()
			ts.SlotState = slotState(t)
			if t.root.Visible() {
				if cur := t.nav.Current(); cur != nil {
					ts.Visible = visibleContent(cur.Root().Children())
				}
			}
		}
		st.Targets = append(st.Targets, ts)
	}
	return st
}

func slotState(t *Target) string {
	cur := t.nav.Current()
	switch {
	case cur == nil:
		return ""
	case cur.Composite() != nil:
		return cur.Composite().State().String()
	case cur.Loaded():
		return "static"
	default:
		return "loading"
	}
}

func visibleContent(nodes []*scene.Node) []string {
	var names []string
	for _, n := range nodes {
		if n.Visible() {
			names = append(names, n.Name())
		}
	}
	return names
}
