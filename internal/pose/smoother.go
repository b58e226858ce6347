// Package pose smooths raw tracking poses into a stable render transform.
package pose

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultAlpha balances jitter suppression against lag at typical frame rates.
const DefaultAlpha = 0.08

// ErrInvalidAlpha is returned when the smoothing coefficient is outside (0,1).
var ErrInvalidAlpha = errors.New("smoothing alpha must be in (0,1)")

// Pose is a world transform: position, unit orientation quaternion and scale.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
	Scale       r3.Vec
}

// Identity returns the pose at the origin with no rotation and unit scale.
func Identity() Pose {
	return Pose{
		Orientation: quat.Number{Real: 1},
		Scale:       r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// Smoother blends a raw pose into its output by a fixed coefficient each frame.
type Smoother struct {
	alpha  float64
	out    Pose
	primed bool
}

// NewSmoother creates a Smoother with the given coefficient.
func NewSmoother(alpha float64) (*Smoother, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, ErrInvalidAlpha
	}
	return &Smoother{alpha: alpha, out: Identity()}, nil
}

// Alpha returns the smoothing coefficient.
func (s *Smoother) Alpha() float64 {
	return s.alpha
}

// Snap sets the output to raw without interpolation.
func (s *Smoother) Snap(raw Pose) Pose {
	s.out = Pose{
		Position:    raw.Position,
		Orientation: normalize(raw.Orientation),
		Scale:       raw.Scale,
	}
	s.primed = true
	return s.out
}

// Update moves the output toward raw and returns it. The first update after
// construction snaps.
func (s *Smoother) Update(raw Pose) Pose {
	if !s.primed {
		return s.Snap(raw)
	}
	s.out = Pose{
		Position:    Lerp(s.out.Position, raw.Position, s.alpha),
		Orientation: Slerp(s.out.Orientation, raw.Orientation, s.alpha),
		Scale:       Lerp(s.out.Scale, raw.Scale, s.alpha),
	}
	return s.out
}

// Output returns the current smoothed pose. It does not change between updates.
func (s *Smoother) Output() Pose {
	return s.out
}

// Lerp interpolates linearly from a to b.
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// Slerp interpolates along the shortest arc between two orientations.
func Slerp(a, b quat.Number, t float64) quat.Number {
	a, b = normalize(a), normalize(b)
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	// Nearly parallel: fall back to normalized lerp to avoid dividing by ~0.
	if dot > 0.9995 {
		return normalize(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}
	theta0 := math.Acos(dot)
	theta := theta0 * t
	sin0 := math.Sin(theta0)
	s0 := math.Cos(theta) - dot*math.Sin(theta)/sin0
	s1 := math.Sin(theta) / sin0
	return quat.Add(quat.Scale(s0, a), quat.Scale(s1, b))
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
