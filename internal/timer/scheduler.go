// Package timer provides the logical-time callback scheduler driven by the engine loop.
package timer

import (
	"container/heap"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Clock abstracts wall time for the engine loop.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

type entry struct {
	handle Handle
	fireAt time.Time
	seq    uint64
	fn     func()
	index  int
}

// Scheduler runs delayed callbacks on logical time.
//
// Callbacks only ever run from Advance, which the engine calls from its single loop
// goroutine. Scheduler is not safe for concurrent use.
type Scheduler struct {
	now     time.Time
	seq     uint64
	pending entryHeap
	live    map[Handle]*entry
}

// New creates a Scheduler whose logical clock starts at start.
func New(start time.Time) *Scheduler {
	return &Scheduler{
		now:  start,
		live: make(map[Handle]*entry),
	}
}

// Now returns the current logical time.
func (s *Scheduler) Now() time.Time {
	return s.now
}

// Schedule registers fn to run once delay has elapsed on the logical clock.
// A non-positive delay still defers fn to the next Advance.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	e := &entry{
		handle: Handle(s.seq),
		fireAt: s.now.Add(delay),
		seq:    s.seq,
		fn:     fn,
	}
	heap.Push(&s.pending, e)
	s.live[e.handle] = e
	return e.handle
}

// Cancel suppresses a pending callback. Unknown or already fired handles are ignored.
func (s *Scheduler) Cancel(h Handle) {
	e, ok := s.live[h]
	if !ok {
		return
	}
	delete(s.live, h)
	heap.Remove(&s.pending, e.index)
}

// CancelAll cancels every handle in hs.
func (s *Scheduler) CancelAll(hs []Handle) {
	for _, h := range hs {
		s.Cancel(h)
	}
}

// Advance moves the logical clock to now and fires every callback due by then,
// ordered by fire time with ties broken by schedule order. While a callback runs the
// clock reads that callback's own fire time, so timers it schedules are measured from
// there. Returns the number of callbacks fired.
func (s *Scheduler) Advance(now time.Time) int {
	fired := 0
	for len(s.pending) > 0 {
		next := s.pending[0]
		if next.fireAt.After(now) {
			break
		}
		heap.Pop(&s.pending)
		delete(s.live, next.handle)
		if next.fireAt.After(s.now) {
			s.now = next.fireAt
		}
		next.fn()
		fired++
	}
	if now.After(s.now) {
		s.now = now
	}
	return fired
}

// Pending returns the number of callbacks waiting to fire.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// NextDeadline reports when the earliest pending callback is due.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	if len(s.pending) == 0 {
		return time.Time{}, false
	}
	return s.pending[0].fireAt, true
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
