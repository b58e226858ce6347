package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := New(epoch)
	var order []string

	s.Schedule(300*time.Millisecond, func() { order = append(order, "c") })
	s.Schedule(100*time.Millisecond, func() { order = append(order, "a") })
	s.Schedule(200*time.Millisecond, func() { order = append(order, "b") })

	fired := s.Advance(epoch.Add(time.Second))

	assert.Equal(t, 3, fired)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestScheduler_TiesBrokenByScheduleOrder(t *testing.T) {
	s := New(epoch)
	var order []int

	for i := 0; i < 5; i++ {
		s.Schedule(50*time.Millisecond, func() { order = append(order, i) })
	}
	s.Advance(epoch.Add(50 * time.Millisecond))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestScheduler_ZeroDelayIsDeferred(t *testing.T) {
	s := New(epoch)
	called := false

	s.Schedule(0, func() { called = true })
	assert.False(t, called, "callback must not run inside Schedule")
	assert.Equal(t, 1, s.Pending())

	s.Advance(epoch)
	assert.True(t, called)
}

func TestScheduler_NotDueYet(t *testing.T) {
	s := New(epoch)
	called := false
	s.Schedule(time.Second, func() { called = true })

	assert.Equal(t, 0, s.Advance(epoch.Add(999*time.Millisecond)))
	assert.False(t, called)

	assert.Equal(t, 1, s.Advance(epoch.Add(time.Second)))
	assert.True(t, called)
}

func TestScheduler_CancelSuppressesCallback(t *testing.T) {
	s := New(epoch)
	called := false
	h := s.Schedule(10*time.Millisecond, func() { called = true })

	s.Cancel(h)
	s.Advance(epoch.Add(time.Second))

	assert.False(t, called)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_CancelAllWithFiredHandles(t *testing.T) {
	s := New(epoch)
	count := 0
	h1 := s.Schedule(10*time.Millisecond, func() { count++ })
	h2 := s.Schedule(20*time.Millisecond, func() { count++ })
	h3 := s.Schedule(30*time.Millisecond, func() { count++ })

	s.Advance(epoch.Add(15 * time.Millisecond))
	require.Equal(t, 1, count)

	s.CancelAll([]Handle{h1, h2, h3, Handle(999)})
	s.Advance(epoch.Add(time.Second))

	assert.Equal(t, 1, count)
}

func TestScheduler_ChainedTimersUseFireTime(t *testing.T) {
	s := New(epoch)
	var hiddenAt time.Time

	s.Schedule(2*time.Second, func() {
		s.Schedule(3*time.Second, func() { hiddenAt = s.Now() })
	})

	// One large jump must still place the chained timer at 2s + 3s.
	s.Advance(epoch.Add(10 * time.Second))

	assert.Equal(t, epoch.Add(5*time.Second), hiddenAt)
	assert.Equal(t, epoch.Add(10*time.Second), s.Now())
}

func TestScheduler_NextDeadline(t *testing.T) {
	s := New(epoch)
	_, ok := s.NextDeadline()
	assert.False(t, ok)

	s.Schedule(time.Minute, func() {})
	s.Schedule(time.Second, func() {})

	d, ok := s.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), d)
}
