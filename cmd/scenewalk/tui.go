package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/scenewalk/scenewalk/pkg/core"
)

const refreshInterval = 100 * time.Millisecond

// controls is what the player exposes to the keyboard.
type controls interface {
	Found(id int) error
	Lost(id int) error
	Next() error
	Prev() error
	Replay() error
}

type tickMsg time.Time

// tourModel is the terminal tour player. Digits toggle camera sight of a target;
// n, p and r drive the navigation HUD.
type tourModel struct {
	ctl    controls
	status func() core.Status

	st      core.Status
	tracked map[int]bool
	err     error
	done    bool
}

func newTourModel(ctl controls, status func() core.Status) tourModel {
	return tourModel{
		ctl:     ctl,
		status:  status,
		st:      status(),
		tracked: make(map[int]bool),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model interface.
func (m tourModel) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model interface.
func (m tourModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.st = m.status()
		return m, tick()
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "ctrl+c", "q", "esc":
			m.done = true
			return m, tea.Quit
		case "n":
			m.err = m.ctl.Next()
		case "p":
			m.err = m.ctl.Prev()
		case "r":
			m.err = m.ctl.Replay()
		default:
			if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
				m.toggle(int(key[0] - '1'))
			}
		}
		m.st = m.status()
	}
	return m, nil
}

func (m *tourModel) toggle(id int) {
	if id >= len(m.st.Targets) {
		return
	}
	if m.tracked[id] {
		m.tracked[id] = false
		m.err = m.ctl.Lost(id)
		return
	}
	m.tracked[id] = true
	m.err = m.ctl.Found(id)
}

// View implements tea.Model interface.
func (m tourModel) View() string {
	if m.done {
		return "Tour ended.\n"
	}
	var b strings.Builder
	b.WriteString("scenewalk\n\n")

	if m.st.HUD {
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n", button("<", m.st.Prev), m.st.Label, button(">", m.st.Next), button("replay", m.st.Replay))
	} else {
		b.WriteString("  point the camera at a marker\n")
	}
	if m.st.Notice != "" {
		fmt.Fprintf(&b, "  ! %s\n", m.st.Notice)
	}
	b.WriteString("\n")

	for _, t := range m.st.Targets {
		fmt.Fprintf(&b, "%d %s", t.ID+1, targetLine(t, m.st.Active == t.ID))
		b.WriteString("\n")
	}

	b.WriteString("\n1-9 toggle marker  n next  p prev  r replay  q quit\n")
	if m.err != nil {
		fmt.Fprintf(&b, "error: %v\n", m.err)
	}
	return b.String()
}

func button(label string, enabled bool) string {
	if enabled {
		return "[" + label + "]"
	}
	return " " + strings.Repeat("-", len(label)) + " "
}

func targetLine(t core.TargetStatus, active bool) string {
	marker := " "
	if active {
		marker = "*"
	}
	state := "waiting"
	switch {
	case !t.Initialized:
		state = "locked"
	case t.Tracked:
		state = "tracked"
	}
	line := fmt.Sprintf("%s %-12s %-8s slot %d/%d %-8s viewed %v", marker, t.Name, state, t.Slot+1, t.Slots, t.SlotState, t.Viewed)
	if t.Complete {
		line += " complete"
	}
	return line
}
