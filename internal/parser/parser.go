// Package parser reads simulation scripts: one instruction per line driving tracking,
// navigation and the clock, with expect lines checking the published status.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/scenewalk/scenewalk/internal/pose"
)

// ErrBadLine wraps every syntax error with its line number.
var ErrBadLine = errors.New("bad script line")

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Scripts exported from spreadsheets write whole numbers with a trailing ".0".
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Parser provides pure text -> Step conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseScript reads a whole script. Blank lines and lines starting with # are skipped.
func (p *Parser) ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		step, err := p.ParseLine(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrBadLine, n, err)
		}
		step.Line = n
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}
	p.logger.Debug("parsed script", "lines", n, "steps", len(steps))
	return steps, nil
}

// ParseLine parses one instruction already split into fields.
func (p *Parser) ParseLine(data []string) (Step, error) {
	if len(data) == 0 {
		return Step{}, fmt.Errorf("empty instruction")
	}
	op := Op(strings.ToLower(data[0]))
	args := data[1:]

	switch op {
	case OpNext, OpPrev, OpReplay:
		if len(args) != 0 {
			return Step{}, fmt.Errorf("%s takes no arguments", op)
		}
		return Step{Op: op}, nil

	case OpWait:
		if len(args) != 1 {
			return Step{}, fmt.Errorf("wait needs a duration")
		}
		d, err := parseDuration(args[0])
		if err != nil {
			return Step{}, err
		}
		return Step{Op: op, Wait: d}, nil

	case OpFound, OpLost:
		if len(args) != 1 {
			return Step{}, fmt.Errorf("%s needs a target", op)
		}
		target, err := parseTarget(args[0])
		if err != nil {
			return Step{}, err
		}
		return Step{Op: op, Target: target}, nil

	case OpPose:
		return p.parsePose(args)

	case OpExpect:
		return p.parseExpect(args)

	default:
		return Step{}, fmt.Errorf("unknown instruction %q", data[0])
	}
}

// parsePose reads "<target> x y z [qx qy qz qw]".
func (p *Parser) parsePose(args []string) (Step, error) {
	if len(args) != 4 && len(args) != 8 {
		return Step{}, fmt.Errorf("pose needs a target and 3 or 7 numbers, got %d fields", len(args))
	}
	target, err := parseTarget(args[0])
	if err != nil {
		return Step{}, err
	}
	nums := make([]float64, len(args)-1)
	for i, a := range args[1:] {
		nums[i], err = strconv.ParseFloat(a, 64)
		if err != nil {
			return Step{}, fmt.Errorf("pose value %q: %w", a, err)
		}
	}

	ps := pose.Identity()
	ps.Position.X, ps.Position.Y, ps.Position.Z = nums[0], nums[1], nums[2]
	if len(nums) == 7 {
		ps.Orientation.Imag, ps.Orientation.Jmag, ps.Orientation.Kmag = nums[3], nums[4], nums[5]
		ps.Orientation.Real = nums[6]
		if ps.Orientation.Real == 0 && ps.Orientation.Imag == 0 && ps.Orientation.Jmag == 0 && ps.Orientation.Kmag == 0 {
			return Step{}, fmt.Errorf("pose orientation is the zero quaternion")
		}
	}
	return Step{Op: OpPose, Target: target, Pose: ps}, nil
}

func (p *Parser) parseExpect(args []string) (Step, error) {
	if len(args) == 0 {
		return Step{}, fmt.Errorf("expect needs a field")
	}
	field := strings.ToLower(args[0])
	rest := args[1:]
	step := Step{Op: OpExpect, Field: field}

	switch field {
	case FieldActive:
		if len(rest) != 1 {
			return Step{}, fmt.Errorf("expect active needs a target or none")
		}
		if rest[0] != "none" {
			if _, err := parseTarget(rest[0]); err != nil {
				return Step{}, err
			}
		}
		step.Value = rest[0]

	case FieldLabel, FieldNotice:
		step.Value = strings.Join(rest, " ")

	case FieldHUD:
		if len(rest) != 1 || (rest[0] != "on" && rest[0] != "off") {
			return Step{}, fmt.Errorf("expect hud needs on or off")
		}
		step.Value = rest[0]

	case FieldSlot, FieldViewed, FieldGate, FieldComplete, FieldVisible:
		if len(rest) < 1 {
			return Step{}, fmt.Errorf("expect %s needs a target", field)
		}
		target, err := parseTarget(rest[0])
		if err != nil {
			return Step{}, err
		}
		step.Target = target
		if err := checkTargetValue(field, rest[1:]); err != nil {
			return Step{}, err
		}
		step.Value = strings.Join(rest[1:], " ")

	default:
		return Step{}, fmt.Errorf("unknown expect field %q", field)
	}
	return step, nil
}

func checkTargetValue(field string, vals []string) error {
	switch field {
	case FieldVisible:
		return nil
	case FieldSlot, FieldViewed:
		if len(vals) != 1 {
			return fmt.Errorf("expect %s needs a count", field)
		}
		_, err := parseUintFromFloat(vals[0])
		return err
	case FieldGate:
		if len(vals) != 1 || (vals[0] != "open" && vals[0] != "closed") {
			return fmt.Errorf("expect gate needs open or closed")
		}
	case FieldComplete:
		if len(vals) != 1 {
			return fmt.Errorf("expect complete needs true or false")
		}
		if _, err := strconv.ParseBool(vals[0]); err != nil {
			return err
		}
	}
	return nil
}

func parseTarget(s string) (int, error) {
	v, err := parseUintFromFloat(s)
	if err != nil {
		return 0, fmt.Errorf("target %q: %w", s, err)
	}
	return int(v), nil
}

// parseDuration accepts Go durations ("1.5s") or bare milliseconds ("1500").
func parseDuration(s string) (time.Duration, error) {
	if ms, err := parseIntFromFloat(s); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative wait %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("wait %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative wait %q", s)
	}
	return d, nil
}
