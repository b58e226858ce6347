// Package sim provides scripted stand-ins for the camera tracker and the clock, and a
// runner that drives an engine from a parsed script.
package sim

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/scenewalk/scenewalk/internal/pose"
)

// Tracker is a scripted image tracker. A found target without an explicit pose sits
// one metre in front of the camera.
type Tracker struct {
	mu    sync.Mutex
	armed map[int]bool
	found map[int]bool
	poses map[int]pose.Pose
}

// NewTracker creates a tracker with nothing armed.
func NewTracker() *Tracker {
	return &Tracker{
		armed: make(map[int]bool),
		found: make(map[int]bool),
		poses: make(map[int]pose.Pose),
	}
}

// Arm implements coordinator.Tracking.
func (t *Tracker) Arm(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed[id] = true
	return nil
}

// Armed reports whether the coordinator created an anchor for id.
func (t *Tracker) Armed(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed[id]
}

// SetFound marks id as seen or lost by the camera.
func (t *Tracker) SetFound(id int, found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.found[id] = found
}

// SetPose sets the raw pose reported for id.
func (t *Tracker) SetPose(id int, p pose.Pose) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.poses[id] = p
}

// Pose implements coordinator.Tracking.
func (t *Tracker) Pose(id int) (pose.Pose, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed[id] || !t.found[id] {
		return pose.Pose{}, false
	}
	if p, ok := t.poses[id]; ok {
		return p, true
	}
	p := pose.Identity()
	p.Position = r3.Vec{Z: -1}
	return p, true
}

// Clock is a manually advanced timer.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now implements timer.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
