package session

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// New starts a session record for a tour.
func New(tour string, targets, slots int, now time.Time) *core.Session {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &core.Session{
		ID:        uuid.NewString(),
		Tour:      tour,
		Host:      host,
		StartedAt: now.UTC(),
		Targets:   targets,
		Slots:     slots,
	}
}

// Context holds the current session
type Context struct {
	mu      sync.RWMutex
	session *core.Session
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		session: &core.Session{Tour: "No tour loaded"},
	}
}

// Get returns a copy of the current session
func (c *Context) Get() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.session
}

// Set replaces the current session
func (c *Context) Set(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// End stamps the end time once and returns the finished session.
func (c *Context) End(at time.Time) core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.EndedAt.IsZero() {
		c.session.EndedAt = at.UTC()
	}
	return *c.session
}
