package influx

import (
	"fmt"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// Measurements written to the journal bucket.
const (
	MeasurementTracking = "tracking"
	MeasurementSlotView = "slot_view"
	MeasurementUnlock   = "gate_unlock"
	MeasurementPart     = "part"
	MeasurementLoad     = "asset_load"
	MeasurementSession  = "session"
)

// Init connects to InfluxDB or opens the backup file.
func (m *Manager) Init() error {
	return m.Connect()
}

// Close flushes writers and the backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	out := m.out
	m.out = nil
	m.mu.Unlock()

	var err error
	if out != nil {
		if err = out.close(); err != nil {
			err = fmt.Errorf("error closing influx sink: %w", err)
		}
	}
	if m.client != nil {
		m.client.Close()
	}
	return err
}

// StartSession tags subsequent points with the session id.
func (m *Manager) StartSession(s *core.Session) error {
	m.mu.Lock()
	m.session = s.ID
	m.started = s.StartedAt
	m.mu.Unlock()

	p := m.point(MeasurementSession, s.StartedAt)
	p.AddTag("tour", s.Tour)
	p.AddField("targets", s.Targets)
	p.AddField("slots", s.Slots)
	p.AddField("started", true)
	return m.write(p)
}

// EndSession writes the session duration and flushes.
func (m *Manager) EndSession() error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	now := time.Now()
	p := m.point(MeasurementSession, now)
	p.AddField("started", false)
	if !started.IsZero() {
		p.AddField("duration_s", now.Sub(started).Seconds())
	}
	err := m.write(p)
	m.mu.Lock()
	if m.out != nil {
		m.out.flush()
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) RecordTrackingEvent(e *core.TrackingEvent) error {
	p := m.point(MeasurementTracking, e.Time)
	p.AddTag("target", fmt.Sprint(e.Target))
	p.AddTag("action", string(e.Action))
	p.AddField("count", 1)
	return m.write(p)
}

func (m *Manager) RecordSlotView(v *core.SlotView) error {
	p := m.point(MeasurementSlotView, v.Time)
	p.AddTag("target", fmt.Sprint(v.Target))
	p.AddField("slot", v.Slot)
	p.AddField("label", v.Label)
	return m.write(p)
}

func (m *Manager) RecordGateUnlock(g *core.GateUnlock) error {
	p := m.point(MeasurementUnlock, g.Time)
	p.AddTag("target", fmt.Sprint(g.Target))
	p.AddField("viewed", len(g.Viewed))
	return m.write(p)
}

func (m *Manager) RecordPartEvent(e *core.PartEvent) error {
	p := m.point(MeasurementPart, e.Time)
	p.AddTag("target", fmt.Sprint(e.Target))
	p.AddTag("action", string(e.Action))
	p.AddField("slot", e.Slot)
	p.AddField("part", e.Part)
	return m.write(p)
}

func (m *Manager) RecordLoadEvent(e *core.LoadEvent) error {
	p := m.point(MeasurementLoad, e.Time)
	p.AddTag("target", fmt.Sprint(e.Target))
	p.AddTag("kind", e.Kind)
	p.AddField("ref", e.Ref)
	p.AddField("elapsed_ms", float64(e.Elapsed.Microseconds())/1000)
	p.AddField("failed", e.Failed())
	return m.write(p)
}

func (m *Manager) point(measurement string, at time.Time) *influxdb2_write.Point {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	p := influxdb2_write.NewPointWithMeasurement(measurement)
	if session != "" {
		p.AddTag("session", session)
	}
	if at.IsZero() {
		at = time.Now()
	}
	p.SetTime(at)
	return p
}

func (m *Manager) write(p *influxdb2_write.Point) error {
	return m.WritePoint(p)
}
