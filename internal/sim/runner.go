package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/scenewalk/scenewalk/internal/parser"
	"github.com/scenewalk/scenewalk/pkg/core"
)

// ErrExpectation is returned when an expect step does not match the status.
var ErrExpectation = errors.New("expectation failed")

// Engine is the part of engine.Engine the runner drives.
type Engine interface {
	Found(id int) error
	Lost(id int) error
	Next() error
	Prev() error
	Replay() error
	Step(now time.Time)
	Status() core.Status
}

// Runner plays a script against an engine in simulated time. Waits are rendered in
// Frame-sized steps; every other instruction is followed by a zero-length step so its
// effects are visible to the next expect.
type Runner struct {
	Engine  Engine
	Tracker *Tracker
	Clock   *Clock
	Frame   time.Duration
	Logger  *slog.Logger
}

// Report summarizes a finished run.
type Report struct {
	Steps        int
	Expectations int
	Elapsed      time.Duration
	Final        core.Status
}

// Run executes steps in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, steps []parser.Step) (Report, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	frame := r.Frame
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}

	start := r.Clock.Now()
	r.Engine.Step(start)

	var rep Report
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := r.apply(ctx, s, frame); err != nil {
			rep.Final = r.Engine.Status()
			rep.Elapsed = r.Clock.Now().Sub(start)
			return rep, fmt.Errorf("line %d: %w", s.Line, err)
		}
		rep.Steps++
		if s.Op == parser.OpExpect {
			rep.Expectations++
		}
		log.Debug("script step", "line", s.Line, "op", s.Op, "label", r.Engine.Status().Label)
	}

	rep.Final = r.Engine.Status()
	rep.Elapsed = r.Clock.Now().Sub(start)
	return rep, nil
}

func (r *Runner) apply(ctx context.Context, s parser.Step, frame time.Duration) error {
	var err error
	switch s.Op {
	case parser.OpWait:
		for left := s.Wait; left > 0; left -= frame {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.Engine.Step(r.Clock.Advance(min(frame, left)))
		}
		return nil
	case parser.OpExpect:
		return check(r.Engine.Status(), s)
	case parser.OpFound:
		r.Tracker.SetFound(s.Target, true)
		err = r.Engine.Found(s.Target)
	case parser.OpLost:
		r.Tracker.SetFound(s.Target, false)
		err = r.Engine.Lost(s.Target)
	case parser.OpPose:
		r.Tracker.SetPose(s.Target, s.Pose)
	case parser.OpNext:
		err = r.Engine.Next()
	case parser.OpPrev:
		err = r.Engine.Prev()
	case parser.OpReplay:
		err = r.Engine.Replay()
	default:
		return fmt.Errorf("unsupported op %q", s.Op)
	}
	if err != nil {
		return err
	}
	r.Engine.Step(r.Clock.Now())
	return nil
}

func check(st core.Status, s parser.Step) error {
	var got string
	switch s.Field {
	case parser.FieldActive:
		got = "none"
		if st.Active >= 0 {
			got = strconv.Itoa(st.Active)
		}
	case parser.FieldLabel:
		got = st.Label
	case parser.FieldNotice:
		got = st.Notice
	case parser.FieldHUD:
		got = "off"
		if st.HUD {
			got = "on"
		}
	default:
		if s.Target < 0 || s.Target >= len(st.Targets) {
			return fmt.Errorf("%w: expect %s: no target %d", ErrExpectation, s.Field, s.Target)
		}
		ts := st.Targets[s.Target]
		switch s.Field {
		case parser.FieldSlot:
			got = strconv.Itoa(ts.Slot)
		case parser.FieldViewed:
			got = strconv.Itoa(len(ts.Viewed))
		case parser.FieldGate:
			got = "closed"
			if ts.GateOpen {
				got = "open"
			}
		case parser.FieldComplete:
			got = strconv.FormatBool(ts.Complete)
		case parser.FieldVisible:
			got = strings.Join(ts.Visible, " ")
		default:
			return fmt.Errorf("unknown expect field %q", s.Field)
		}
	}

	want := s.Value
	switch s.Field {
	case parser.FieldComplete:
		b, _ := strconv.ParseBool(want)
		want = strconv.FormatBool(b)
	case parser.FieldSlot, parser.FieldViewed:
		if f, err := strconv.ParseFloat(want, 64); err == nil {
			want = strconv.Itoa(int(f))
		}
	}
	if got != want {
		return fmt.Errorf("%w: expect %s: got %q, want %q", ErrExpectation, s.Field, got, want)
	}
	return nil
}
