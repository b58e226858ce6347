// Package completion records viewed slots and reports when a gate opens.
package completion

import "sort"

// Tracker counts distinct viewed slots among a fixed subset.
//
// Completion is one-way: once every tracked slot has been viewed the tracker stays
// complete and its listeners have been called exactly once.
type Tracker struct {
	tracked   map[int]struct{}
	viewed    map[int]struct{}
	complete  bool
	listeners []func()
}

// New creates a Tracker over the given slot indices. Duplicates are collapsed.
// A tracker over no slots is complete from the start.
func New(indices []int) *Tracker {
	t := &Tracker{
		tracked: make(map[int]struct{}, len(indices)),
		viewed:  make(map[int]struct{}, len(indices)),
	}
	for _, i := range indices {
		t.tracked[i] = struct{}{}
	}
	t.complete = len(t.tracked) == 0
	return t
}

// MarkViewed records slot i. It returns true only when i is tracked and was not
// already recorded.
func (t *Tracker) MarkViewed(i int) bool {
	if _, ok := t.tracked[i]; !ok {
		return false
	}
	if _, ok := t.viewed[i]; ok {
		return false
	}
	t.viewed[i] = struct{}{}

	if !t.complete && len(t.viewed) >= len(t.tracked) {
		t.complete = true
		listeners := t.listeners
		t.listeners = nil
		for _, fn := range listeners {
			fn()
		}
	}
	return true
}

// IsComplete reports whether every tracked slot has been viewed.
func (t *Tracker) IsComplete() bool {
	return t.complete
}

// OnComplete registers fn to run once when the tracker completes. If it is already
// complete fn runs immediately.
func (t *Tracker) OnComplete(fn func()) {
	if t.complete {
		fn()
		return
	}
	t.listeners = append(t.listeners, fn)
}

// Viewed returns the recorded slot indices in ascending order.
func (t *Tracker) Viewed() []int {
	out := make([]int, 0, len(t.viewed))
	for i := range t.viewed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Count returns how many tracked slots have been viewed.
func (t *Tracker) Count() int {
	return len(t.viewed)
}

// Need returns how many distinct slots must be viewed.
func (t *Tracker) Need() int {
	return len(t.tracked)
}
