package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/pkg/core"
)

func TestNew(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	s := New("campus", 2, 7, now)

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "campus", s.Tour)
	assert.NotEmpty(t, s.Host)
	assert.Equal(t, time.UTC, s.StartedAt.Location())
	assert.True(t, s.StartedAt.Equal(now))
	assert.Equal(t, 2, s.Targets)
	assert.Equal(t, 7, s.Slots)
	assert.NotEqual(t, s.ID, New("campus", 2, 7, now).ID)
}

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()
	assert.Equal(t, "No tour loaded", ctx.Get().Tour)
}

func TestContext_EndOnce(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := NewContext()
	ctx.Set(&core.Session{ID: "s1", StartedAt: start})

	done := ctx.End(start.Add(time.Minute))
	assert.Equal(t, time.Minute, done.Duration())

	again := ctx.End(start.Add(time.Hour))
	assert.Equal(t, time.Minute, again.Duration(), "end time is kept")
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx.Set(&core.Session{ID: "s"})
		}()
		go func() {
			defer wg.Done()
			_ = ctx.Get()
		}()
	}
	wg.Wait()
	assert.Equal(t, "s", ctx.Get().ID)
}
