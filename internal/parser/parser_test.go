package parser

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/pose"
)

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestNewParser(t *testing.T) {
	p := newTestParser()
	require.NotNil(t, p)
}

func TestParseUintFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"float with decimals", "32.00", 32, false},
		{"float with trailing zero", "30.0", 30, false},
		{"large integer", "65535", 65535, false},
		{"large float", "65535.00", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUintFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseIntFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"negative integer", "-1", -1, false},
		{"float with decimals", "32.00", 32, false},
		{"negative float", "-1.00", -1, false},
		{"large integer", "65535", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseScript(t *testing.T) {
	script := `
# walk the first marker
found 0
wait 2s
expect active 0
expect label 1/4
pose 0 0.5 0 -1
next
wait 1500
expect viewed 0 2
expect visible 0 a0s1p0 a0s1p1
lost 0
expect hud off
expect notice
`
	steps, err := newTestParser().ParseScript(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, steps, 12)

	assert.Equal(t, Step{Line: 3, Op: OpFound, Target: 0}, steps[0])
	assert.Equal(t, Step{Line: 4, Op: OpWait, Wait: 2 * time.Second}, steps[1])
	assert.Equal(t, Step{Line: 5, Op: OpExpect, Field: FieldActive, Value: "0"}, steps[2])
	assert.Equal(t, "1/4", steps[3].Value)
	assert.Equal(t, OpPose, steps[4].Op)
	assert.Equal(t, 0.5, steps[4].Pose.Position.X)
	assert.Equal(t, -1.0, steps[4].Pose.Position.Z)
	assert.Equal(t, pose.Identity().Orientation, steps[4].Pose.Orientation)
	assert.Equal(t, OpNext, steps[5].Op)
	assert.Equal(t, 1500*time.Millisecond, steps[6].Wait)
	assert.Equal(t, Step{Line: 10, Op: OpExpect, Field: FieldViewed, Target: 0, Value: "2"}, steps[7])
	assert.Equal(t, "a0s1p0 a0s1p1", steps[8].Value)
	assert.Equal(t, "", steps[11].Value)
}

func TestParseLine_Pose(t *testing.T) {
	step, err := newTestParser().ParseLine([]string{"pose", "1", "0", "0", "0", "0", "0.7071", "0", "0.7071"})
	require.NoError(t, err)
	assert.Equal(t, 1, step.Target)
	assert.Equal(t, 0.7071, step.Pose.Orientation.Jmag)
	assert.Equal(t, 0.7071, step.Pose.Orientation.Real)
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"unknown op", "jump 0"},
		{"found without target", "found"},
		{"negative target", "found -1"},
		{"next with args", "next 1"},
		{"wait without unit or number", "wait soon"},
		{"negative wait", "wait -5ms"},
		{"short pose", "pose 0 1 2"},
		{"bad pose number", "pose 0 1 x 3"},
		{"zero quaternion", "pose 0 0 0 0 0 0 0 0"},
		{"expect nothing", "expect"},
		{"expect unknown", "expect color red"},
		{"expect hud maybe", "expect hud maybe"},
		{"expect gate ajar", "expect gate 0 ajar"},
		{"expect complete word", "expect complete 0 yes"},
		{"expect viewed fraction", "expect viewed 0 1.5"},
		{"expect active word", "expect active first"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseLine(strings.Fields(tt.line))
			assert.Error(t, err)
		})
	}
}

func TestParseScript_ReportsLine(t *testing.T) {
	_, err := newTestParser().ParseScript(strings.NewReader("found 0\n\n# ok\nfound x\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadLine))
	assert.Contains(t, err.Error(), "line 4")
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("250")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = parseDuration("3.0")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Millisecond, d)

	d, err = parseDuration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}
