package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_MarkViewedIsIdempotent(t *testing.T) {
	tr := New([]int{0, 1, 2})

	assert.True(t, tr.MarkViewed(1))
	assert.False(t, tr.MarkViewed(1))
	assert.Equal(t, 1, tr.Count())
	assert.False(t, tr.IsComplete())
}

func TestTracker_IgnoresUntrackedSlots(t *testing.T) {
	tr := New([]int{0, 1, 2})

	assert.False(t, tr.MarkViewed(3))
	assert.Equal(t, 0, tr.Count())
}

func TestTracker_CompletesOnceAfterThirdDistinctView(t *testing.T) {
	tr := New([]int{0, 1, 2})
	var fired []int
	step := 0
	tr.OnComplete(func() { fired = append(fired, step) })

	for _, slot := range []int{0, 1, 0, 2} {
		step++
		tr.MarkViewed(slot)
	}
	// Repeat qualifying views in another order.
	for _, slot := range []int{2, 1, 0} {
		step++
		tr.MarkViewed(slot)
	}

	assert.True(t, tr.IsComplete())
	assert.Equal(t, []int{4}, fired, "must fire exactly once, on the view of slot 2")
}

func TestTracker_LateListenerRunsImmediately(t *testing.T) {
	tr := New([]int{5})
	tr.MarkViewed(5)

	called := 0
	tr.OnComplete(func() { called++ })
	assert.Equal(t, 1, called)
}

func TestTracker_EmptySubsetStartsComplete(t *testing.T) {
	tr := New(nil)
	assert.True(t, tr.IsComplete())
	assert.Equal(t, 0, tr.Need())
}

func TestTracker_ViewedSorted(t *testing.T) {
	tr := New([]int{3, 1, 2, 2})
	tr.MarkViewed(3)
	tr.MarkViewed(1)

	assert.Equal(t, 3, tr.Need())
	assert.Equal(t, []int{1, 3}, tr.Viewed())
}
