package storage

import (
	"errors"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// Fanout forwards every call to all of its backends in order. A failing backend
// does not stop the others; their errors are joined.
type Fanout struct {
	backends []Backend
}

// NewFanout creates a Fanout over the non-nil backends.
func NewFanout(backends ...Backend) *Fanout {
	f := &Fanout{}
	for _, b := range backends {
		if b != nil {
			f.backends = append(f.backends, b)
		}
	}
	return f
}

// Backends returns the wrapped backends.
func (f *Fanout) Backends() []Backend {
	return f.backends
}

// Uploadable returns the first backend that produces an uploadable export.
func (f *Fanout) Uploadable() (Uploadable, bool) {
	for _, b := range f.backends {
		if u, ok := b.(Uploadable); ok {
			return u, true
		}
	}
	return nil, false
}

func (f *Fanout) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range f.backends {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Init() error  { return f.each(Backend.Init) }
func (f *Fanout) Close() error { return f.each(Backend.Close) }

func (f *Fanout) StartSession(s *core.Session) error {
	return f.each(func(b Backend) error { return b.StartSession(s) })
}

func (f *Fanout) EndSession() error { return f.each(Backend.EndSession) }

func (f *Fanout) RecordTrackingEvent(e *core.TrackingEvent) error {
	return f.each(func(b Backend) error { return b.RecordTrackingEvent(e) })
}

func (f *Fanout) RecordSlotView(v *core.SlotView) error {
	return f.each(func(b Backend) error { return b.RecordSlotView(v) })
}

func (f *Fanout) RecordGateUnlock(g *core.GateUnlock) error {
	return f.each(func(b Backend) error { return b.RecordGateUnlock(g) })
}

func (f *Fanout) RecordPartEvent(e *core.PartEvent) error {
	return f.each(func(b Backend) error { return b.RecordPartEvent(e) })
}

func (f *Fanout) RecordLoadEvent(e *core.LoadEvent) error {
	return f.each(func(b Backend) error { return b.RecordLoadEvent(e) })
}
