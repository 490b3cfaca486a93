// Package tween drives scripted, time-parameterized moves. Every
// interpolation is an explicit value (start, end, duration, elapsed) that
// is advanced by the per-frame update, so callers can observe whether a
// move is still running.
package tween

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ease maps linear progress in [0, 1] to eased progress.
type Ease uint8

const (
	Linear Ease = iota
	OutQuad
)

// Apply returns the eased progress for t.
func (e Ease) Apply(t float64) float64 {
	t = mgl64.Clamp(t, 0, 1)
	switch e {
	case OutQuad:
		return -t * (t - 2)
	default:
		return t
	}
}

// Tween interpolates a position from From to To.
type Tween struct {
	From     mgl64.Vec3
	To       mgl64.Vec3
	Duration float64
	Elapsed  float64
	Ease     Ease
}

// Done reports whether the tween reached its end.
func (t *Tween) Done() bool {
	return t.Elapsed >= t.Duration
}

// Value returns the interpolated position at the current elapsed time.
func (t *Tween) Value() mgl64.Vec3 {
	if t.Duration <= 0 {
		return t.To
	}
	k := t.Ease.Apply(t.Elapsed / t.Duration)
	return t.From.Add(t.To.Sub(t.From).Mul(k))
}

// Advance moves the tween forward by dt and returns the new position.
func (t *Tween) Advance(dt float64) mgl64.Vec3 {
	t.Elapsed = math.Min(t.Elapsed+dt, math.Max(t.Duration, 0))
	return t.Value()
}

// Angle interpolates a heading in degrees along the shortest arc.
type Angle struct {
	From     float64
	To       float64
	Duration float64
	Elapsed  float64
	Ease     Ease
}

// Done reports whether the rotation finished.
func (a *Angle) Done() bool {
	return a.Elapsed >= a.Duration
}

// Advance moves the rotation forward by dt and returns the heading.
func (a *Angle) Advance(dt float64) float64 {
	a.Elapsed = math.Min(a.Elapsed+dt, math.Max(a.Duration, 0))
	if a.Duration <= 0 {
		return a.To
	}
	delta := math.Remainder(a.To-a.From, 360)
	return a.From + delta*a.Ease.Apply(a.Elapsed/a.Duration)
}

// Leg is one step of a Sequence. Its end point and duration are resolved
// from the position at which the leg starts.
type Leg struct {
	Plan func(from mgl64.Vec3) (to mgl64.Vec3, duration float64)
	Ease Ease
}

// MoveY returns a leg changing only the height, at a constant speed.
func MoveY(height, speed float64, ease Ease) Leg {
	return Leg{
		Plan: func(from mgl64.Vec3) (mgl64.Vec3, float64) {
			to := mgl64.Vec3{from.X(), height, from.Z()}
			return to, math.Abs(height-from.Y()) / speed
		},
		Ease: ease,
	}
}

// MoveTo returns a leg to a fixed point, at a constant speed.
func MoveTo(to mgl64.Vec3, speed float64, ease Ease) Leg {
	return Leg{
		Plan: func(from mgl64.Vec3) (mgl64.Vec3, float64) {
			return to, to.Sub(from).Len() / speed
		},
		Ease: ease,
	}
}

// MoveToIn returns a leg to a fixed point over a fixed duration.
func MoveToIn(to mgl64.Vec3, duration float64, ease Ease) Leg {
	return Leg{
		Plan: func(mgl64.Vec3) (mgl64.Vec3, float64) {
			return to, duration
		},
		Ease: ease,
	}
}

// Sequence runs legs back to back and calls the completion callback once
// the last leg ends.
type Sequence struct {
	legs       []Leg
	index      int
	current    Tween
	running    bool
	onUpdate   func(mgl64.Vec3)
	onComplete func()
}

// NewSequence creates an idle sequence.
func NewSequence(legs ...Leg) *Sequence {
	return &Sequence{legs: legs}
}

// OnComplete registers the callback invoked after the last leg.
func (s *Sequence) OnComplete(fn func()) *Sequence {
	s.onComplete = fn
	return s
}

// OnUpdate registers a callback receiving every interpolated position,
// including the final one, before the completion callback runs.
func (s *Sequence) OnUpdate(fn func(mgl64.Vec3)) *Sequence {
	s.onUpdate = fn
	return s
}

// Start begins the first leg from the given position.
func (s *Sequence) Start(from mgl64.Vec3) {
	if len(s.legs) == 0 {
		s.finish()
		return
	}
	s.running = true
	s.begin(0, from)
}

// InProgress reports whether a leg is still running.
func (s *Sequence) InProgress() bool {
	return s != nil && s.running
}

// Leg returns the index of the running leg.
func (s *Sequence) Leg() int { return s.index }

// Advance moves the running leg forward by dt and returns the position.
// Finished legs hand over to the next leg starting from their end point.
func (s *Sequence) Advance(dt float64) mgl64.Vec3 {
	if !s.running {
		return s.current.To
	}
	pos := s.current.Advance(dt)
	if s.onUpdate != nil {
		s.onUpdate(pos)
	}
	if !s.current.Done() {
		return pos
	}
	if s.index+1 < len(s.legs) {
		s.begin(s.index+1, pos)
		return pos
	}
	s.running = false
	s.finish()
	return pos
}

func (s *Sequence) begin(i int, from mgl64.Vec3) {
	to, d := s.legs[i].Plan(from)
	s.index = i
	s.current = Tween{From: from, To: to, Duration: d, Ease: s.legs[i].Ease}
}

func (s *Sequence) finish() {
	if s.onComplete != nil {
		s.onComplete()
	}
}
