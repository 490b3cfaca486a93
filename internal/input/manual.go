package input

import (
	"math"
	"sync"
)

// Stick is one analogue stick, each axis in [-1, 1].
type Stick struct {
	X float64
	Y float64
}

// Manual adapts human input to a Source. Device polling runs on its own
// goroutine and publishes through Set or SetSticks; Drive copies the
// latest values into the channel on the simulation goroutine.
type Manual struct {
	mu       sync.Mutex
	axes     Axes
	deadzone float64
}

// NewManual creates a human input adapter. Axis values whose magnitude is
// below deadzone are treated as zero.
func NewManual(deadzone float64) *Manual {
	return &Manual{deadzone: math.Max(0, deadzone)}
}

// Set publishes raw axes.
func (m *Manual) Set(a Axes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.axes = Axes{
		Pitch:    m.filter(a.Pitch),
		Roll:     m.filter(a.Roll),
		Yaw:      m.filter(a.Yaw),
		Throttle: m.filter(a.Throttle),
	}
}

// SetSticks publishes a two-stick layout: the left stick carries yaw (X)
// and throttle (Y), the right stick roll (X) and pitch (Y).
func (m *Manual) SetSticks(left, right Stick) {
	m.Set(Axes{
		Pitch:    right.Y,
		Roll:     right.X,
		Yaw:      left.X,
		Throttle: left.Y,
	})
}

// Drive implements Source.
func (m *Manual) Drive(_ float64, ch *Channel) {
	m.mu.Lock()
	a := m.axes
	m.mu.Unlock()
	ch.Write(a)
}

func (m *Manual) filter(v float64) float64 {
	if math.IsNaN(v) || math.Abs(v) < m.deadzone {
		return 0
	}
	return v
}
