package gormstorage

import (
	"time"

	"gorm.io/datatypes"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// Session is one journal session row.
type Session struct {
	ID        uint      `gorm:"primaryKey"`
	UUID      string    `gorm:"size:64;uniqueIndex"`
	Tour      string    `gorm:"size:128"`
	Host      string    `gorm:"size:128"`
	StartedAt time.Time `gorm:"index"`
	EndedAt   *time.Time
	Targets   int
	Slots     int
}

// TrackingEvent is a found/lost response row.
type TrackingEvent struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"index"`
	Time      time.Time `gorm:"index"`
	Target    int
	Action    string `gorm:"size:16"`
	Detail    string `gorm:"size:256"`
}

// SlotView is the first-view row of a slot.
type SlotView struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"index"`
	Time      time.Time `gorm:"index"`
	Target    int
	Slot      int
	Label     string `gorm:"size:64"`
}

// GateUnlock is the completion row of a tracker.
type GateUnlock struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"index"`
	Time      time.Time `gorm:"index"`
	Target    int
	Viewed    datatypes.JSONSlice[int]
}

// PartEvent is a sequence start or part visibility row.
type PartEvent struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"index"`
	Time      time.Time `gorm:"index"`
	Target    int
	Slot      int
	Part      int
	Ref       string `gorm:"size:256"`
	Action    string `gorm:"size:16"`
}

// LoadEvent is an asset load outcome row.
type LoadEvent struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"index"`
	Time      time.Time `gorm:"index"`
	Target    int
	Slot      int
	Part      int
	Kind      string `gorm:"size:16"`
	Ref       string `gorm:"size:256"`
	ElapsedMs float64
	Error     string `gorm:"size:512"`
}

// Models lists every table for AutoMigrate.
var Models = []any{
	&Session{},
	&TrackingEvent{},
	&SlotView{},
	&GateUnlock{},
	&PartEvent{},
	&LoadEvent{},
}

func sessionRow(s *core.Session) Session {
	row := Session{
		UUID:      s.ID,
		Tour:      s.Tour,
		Host:      s.Host,
		StartedAt: s.StartedAt,
		Targets:   s.Targets,
		Slots:     s.Slots,
	}
	if !s.EndedAt.IsZero() {
		end := s.EndedAt
		row.EndedAt = &end
	}
	return row
}

func trackingRow(id uint, e *core.TrackingEvent) TrackingEvent {
	return TrackingEvent{SessionID: id, Time: e.Time, Target: e.Target, Action: string(e.Action), Detail: e.Detail}
}

func viewRow(id uint, v *core.SlotView) SlotView {
	return SlotView{SessionID: id, Time: v.Time, Target: v.Target, Slot: v.Slot, Label: v.Label}
}

func unlockRow(id uint, g *core.GateUnlock) GateUnlock {
	viewed := make([]int, len(g.Viewed))
	copy(viewed, g.Viewed)
	return GateUnlock{SessionID: id, Time: g.Time, Target: g.Target, Viewed: datatypes.NewJSONSlice(viewed)}
}

func partRow(id uint, e *core.PartEvent) PartEvent {
	return PartEvent{
		SessionID: id, Time: e.Time, Target: e.Target, Slot: e.Slot, Part: e.Part,
		Ref: e.Ref, Action: string(e.Action),
	}
}

func loadRow(id uint, e *core.LoadEvent) LoadEvent {
	return LoadEvent{
		SessionID: id, Time: e.Time, Target: e.Target, Slot: e.Slot, Part: e.Part,
		Kind: e.Kind, Ref: e.Ref, ElapsedMs: float64(e.Elapsed.Microseconds()) / 1000, Error: e.Error,
	}
}
