// Package tour defines the authored tour: targets, their slots and reveal schedules.
package tour

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scenewalk/scenewalk/internal/sequencer"
)

var (
	ErrNoTargets          = errors.New("tour has no targets")
	ErrNoSlots            = errors.New("target has no slots")
	ErrMismatchedSchedule = errors.New("schedule arrays do not match files")
	ErrSlotContent        = errors.New("slot needs exactly one of static or files")
	ErrUnknownGate        = errors.New("gate must name an earlier target with tracked slots")
	ErrSlotIndex          = errors.New("slot index out of range")
	ErrInitTrigger        = errors.New("initOn must be gate or slot")
)

// Init triggers for lazily created targets.
const (
	InitOnGate = "gate"
	InitOnSlot = "slot"
)

// Tour is the full authored experience.
type Tour struct {
	Name    string      `json:"name" mapstructure:"name"`
	Targets []TargetDef `json:"targets" mapstructure:"targets"`
}

// TargetDef configures one tracked marker.
type TargetDef struct {
	Name  string `json:"name" mapstructure:"name"`
	Label string `json:"label" mapstructure:"label"`
	// Gate is the index of the target whose completion opens this one.
	Gate *int `json:"gate,omitempty" mapstructure:"gate"`
	// InitOn selects when a gated target is created: on gate completion or when the
	// gating target enters InitSlot.
	InitOn   string `json:"initOn,omitempty" mapstructure:"initOn"`
	InitSlot int    `json:"initSlot,omitempty" mapstructure:"initSlot"`
	// Track lists the slots whose views complete this target.
	Track []int `json:"track,omitempty" mapstructure:"track"`
	// Boundary is the slot that cannot advance until Track is complete.
	Boundary *int `json:"boundary,omitempty" mapstructure:"boundary"`

	NotReady string `json:"notReady,omitempty" mapstructure:"notReady"`
	Unlocked string `json:"unlocked,omitempty" mapstructure:"unlocked"`
	Stalled  string `json:"stalled,omitempty" mapstructure:"stalled"`

	Occluders []string  `json:"occluders,omitempty" mapstructure:"occluders"`
	Slots     []SlotDef `json:"slots" mapstructure:"slots"`
}

// SlotDef configures one slot: either a static reference or a composite schedule.
type SlotDef struct {
	Title  string `json:"title,omitempty" mapstructure:"title"`
	Static string `json:"static,omitempty" mapstructure:"static"`

	Files     []string `json:"files,omitempty" mapstructure:"files"`
	Timing    []int    `json:"timing,omitempty" mapstructure:"timing"`       // ms, absolute
	HideAfter []int    `json:"hideAfter,omitempty" mapstructure:"hideAfter"` // ms, 0 = permanent
	Pinned    []int    `json:"pinned,omitempty" mapstructure:"pinned"`

	ResetOnEnter *bool `json:"resetOnEnter,omitempty" mapstructure:"resetOnEnter"`
	ResetOnLeave *bool `json:"resetOnLeave,omitempty" mapstructure:"resetOnLeave"`
	Exclusive    bool  `json:"exclusive,omitempty" mapstructure:"exclusive"`

	// Gated keeps the slot closed until the owning target's Track is complete.
	Gated bool `json:"gated,omitempty" mapstructure:"gated"`
}

// Composite reports whether the slot is a timed multi-part slot.
func (s SlotDef) Composite() bool {
	return len(s.Files) > 0
}

// Parts converts the parallel schedule arrays into part specs.
func (s SlotDef) Parts() []sequencer.PartSpec {
	pinned := make(map[int]bool, len(s.Pinned))
	for _, i := range s.Pinned {
		pinned[i] = true
	}
	parts := make([]sequencer.PartSpec, len(s.Files))
	for i, ref := range s.Files {
		p := sequencer.PartSpec{Ref: ref, Pinned: pinned[i]}
		if i < len(s.Timing) {
			p.At = time.Duration(s.Timing[i]) * time.Millisecond
		}
		if i < len(s.HideAfter) {
			p.HideAfter = time.Duration(s.HideAfter[i]) * time.Millisecond
		}
		parts[i] = p
	}
	return parts
}

// Options resolves the reset flags, defaulting both to true.
func (s SlotDef) Options(skipFailed bool) sequencer.Options {
	opts := sequencer.DefaultOptions()
	if s.ResetOnEnter != nil {
		opts.ResetOnEnter = *s.ResetOnEnter
	}
	if s.ResetOnLeave != nil {
		opts.ResetOnLeave = *s.ResetOnLeave
	}
	opts.Exclusive = s.Exclusive
	opts.SkipFailed = skipFailed
	return opts
}

// Trigger returns the init trigger, defaulting to gate completion.
func (t TargetDef) Trigger() string {
	if t.InitOn == "" {
		return InitOnGate
	}
	return t.InitOn
}

// SlotCount returns the total number of slots across targets.
func (t *Tour) SlotCount() int {
	n := 0
	for _, tg := range t.Targets {
		n += len(tg.Slots)
	}
	return n
}

// Validate checks cross-references and schedule shapes.
func (t *Tour) Validate() error {
	if len(t.Targets) == 0 {
		return ErrNoTargets
	}
	for ti, tg := range t.Targets {
		if len(tg.Slots) == 0 {
			return fmt.Errorf("target %d: %w", ti, ErrNoSlots)
		}
		if tg.Gate != nil {
			g := *tg.Gate
			if g < 0 || g >= ti || len(t.Targets[g].Track) == 0 {
				return fmt.Errorf("target %d gate %d: %w", ti, g, ErrUnknownGate)
			}
		}
		switch tg.Trigger() {
		case InitOnGate:
		case InitOnSlot:
			if tg.Gate == nil {
				return fmt.Errorf("target %d: slot trigger without gate: %w", ti, ErrInitTrigger)
			}
			if tg.InitSlot < 0 || tg.InitSlot >= len(t.Targets[*tg.Gate].Slots) {
				return fmt.Errorf("target %d initSlot %d: %w", ti, tg.InitSlot, ErrSlotIndex)
			}
		default:
			return fmt.Errorf("target %d %q: %w", ti, tg.InitOn, ErrInitTrigger)
		}
		for _, i := range tg.Track {
			if i < 0 || i >= len(tg.Slots) {
				return fmt.Errorf("target %d track %d: %w", ti, i, ErrSlotIndex)
			}
		}
		if tg.Boundary != nil && (*tg.Boundary < 0 || *tg.Boundary >= len(tg.Slots)) {
			return fmt.Errorf("target %d boundary %d: %w", ti, *tg.Boundary, ErrSlotIndex)
		}
		for si, s := range tg.Slots {
			if err := s.validate(len(tg.Track) > 0); err != nil {
				return fmt.Errorf("target %d slot %d: %w", ti, si, err)
			}
		}
	}
	return nil
}

func (s SlotDef) validate(tracked bool) error {
	if (s.Static == "") == (len(s.Files) == 0) {
		return ErrSlotContent
	}
	if s.Gated && !tracked {
		return fmt.Errorf("gated slot on untracked target: %w", ErrUnknownGate)
	}
	if len(s.Files) == 0 {
		return nil
	}
	if len(s.Timing) != len(s.Files) {
		return fmt.Errorf("timing has %d entries for %d files: %w", len(s.Timing), len(s.Files), ErrMismatchedSchedule)
	}
	if len(s.HideAfter) != 0 && len(s.HideAfter) != len(s.Files) {
		return fmt.Errorf("hideAfter has %d entries for %d files: %w", len(s.HideAfter), len(s.Files), ErrMismatchedSchedule)
	}
	for _, p := range s.Pinned {
		if p < 0 || p >= len(s.Files) {
			return fmt.Errorf("pinned %d: %w", p, ErrSlotIndex)
		}
	}
	return nil
}

// Load reads a tour file (JSON, YAML or TOML by extension) and validates it.
func Load(path string) (*Tour, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading tour file: %w", err)
	}

	t := &Tour{}
	if err := v.Unmarshal(t); err != nil {
		return nil, fmt.Errorf("error decoding tour file: %w", err)
	}
	if t.Name == "" {
		base := filepath.Base(path)
		t.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
