package parser

import (
	"time"

	"github.com/scenewalk/scenewalk/internal/pose"
)

// Op is a script instruction.
type Op string

const (
	OpWait   Op = "wait"
	OpFound  Op = "found"
	OpLost   Op = "lost"
	OpPose   Op = "pose"
	OpNext   Op = "next"
	OpPrev   Op = "prev"
	OpReplay Op = "replay"
	OpExpect Op = "expect"
)

// Fields an expect step can check.
const (
	FieldActive   = "active"   // target index or "none"
	FieldLabel    = "label"    // status label text
	FieldNotice   = "notice"   // current notice text, empty for none
	FieldHUD      = "hud"      // on|off
	FieldSlot     = "slot"     // <target> <index>
	FieldViewed   = "viewed"   // <target> <count>
	FieldGate     = "gate"     // <target> open|closed
	FieldComplete = "complete" // <target> true|false
	FieldVisible  = "visible"  // <target> <node> [<node>...], in order
)

// Step is one parsed script line.
type Step struct {
	Line   int
	Op     Op
	Target int
	Wait   time.Duration
	Pose   pose.Pose
	Field  string
	Value  string
}
