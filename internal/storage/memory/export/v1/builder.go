package v1

import (
	"sort"
	"time"

	"github.com/scenewalk/scenewalk/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session  *core.Session
	Tracking []core.TrackingEvent
	Views    []core.SlotView
	Unlocks  []core.GateUnlock
	Parts    []core.PartEvent
	Loads    []core.LoadEvent
}

type row struct {
	at   time.Time
	seq  int
	cols []any
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	s := data.Session
	export := Export{
		FormatVersion: FormatVersion,
		SessionID:     s.ID,
		Tour:          s.Tour,
		Host:          s.Host,
		StartedAt:     s.StartedAt.UTC().Format(time.RFC3339),
		Duration:      s.Duration().Seconds(),
		Targets:       make([]Target, 0, s.Targets),
		Events:        make([][]any, 0),
	}
	if !s.EndedAt.IsZero() {
		export.EndedAt = s.EndedAt.UTC().Format(time.RFC3339)
	}

	targets := make(map[int]*Target)
	target := func(id int) *Target {
		t, ok := targets[id]
		if !ok {
			t = &Target{ID: id, Viewed: make([]int, 0)}
			targets[id] = t
		}
		return t
	}
	for i := 0; i < s.Targets; i++ {
		target(i)
	}

	var rows []row
	add := func(at time.Time, cols ...any) {
		rows = append(rows, row{at: at, seq: len(rows), cols: cols})
	}

	for _, e := range data.Tracking {
		if e.Action == core.TrackingActivated {
			target(e.Target).Activated++
		}
		add(e.Time, KindTracking, e.Target, string(e.Action), e.Detail)
	}
	for _, v := range data.Views {
		t := target(v.Target)
		t.Viewed = append(t.Viewed, v.Slot)
		add(v.Time, KindView, v.Target, v.Slot, v.Label)
	}
	for _, g := range data.Unlocks {
		target(g.Target).UnlockedAt = offset(s.StartedAt, g.Time).Seconds()
		add(g.Time, KindUnlock, g.Target, g.Viewed)
	}
	for _, p := range data.Parts {
		if p.Action == core.PartRevealed {
			target(p.Target).Reveals++
		}
		add(p.Time, KindPart, p.Target, p.Slot, p.Part, string(p.Action), p.Ref)
	}
	for _, l := range data.Loads {
		if l.Failed() {
			target(l.Target).LoadErrors++
		}
		add(l.Time, KindLoad, l.Target, l.Slot, l.Part, l.Kind, l.Ref, l.Elapsed.Milliseconds(), l.Error)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].at.Equal(rows[j].at) {
			return rows[i].at.Before(rows[j].at)
		}
		return rows[i].seq < rows[j].seq
	})
	for _, r := range rows {
		export.Events = append(export.Events, append([]any{offset(s.StartedAt, r.at).Milliseconds()}, r.cols...))
	}

	ids := make([]int, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		t := targets[id]
		sort.Ints(t.Viewed)
		export.Targets = append(export.Targets, *t)
	}

	return export
}

func offset(start, at time.Time) time.Duration {
	if at.Before(start) {
		return 0
	}
	return at.Sub(start)
}
