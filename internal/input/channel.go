// Package input holds the four-axis control channel shared between a
// control source and the flight integrator.
package input

import (
	"math"

	"github.com/OCAP2/flightcore/pkg/core"
)

// IdleEpsilon is the magnitude below which an axis counts as centred.
const IdleEpsilon = 1e-6

// Axes holds the four control inputs. Pitch, roll and yaw are nominally in
// [-1, 1]; throttle may range wider.
type Axes struct {
	Pitch    float64
	Roll     float64
	Yaw      float64
	Throttle float64
}

// IsIdle reports whether pitch, roll and yaw are centred. Throttle is not
// considered.
func (a Axes) IsIdle() bool {
	return math.Abs(a.Pitch) < IdleEpsilon &&
		math.Abs(a.Roll) < IdleEpsilon &&
		math.Abs(a.Yaw) < IdleEpsilon
}

// Core converts the axes to their recorded form.
func (a Axes) Core() core.Axes {
	return core.Axes{Pitch: a.Pitch, Roll: a.Roll, Yaw: a.Yaw, Throttle: a.Throttle}
}

// Reader is the read-only view the integrator gets.
type Reader interface {
	Read() Axes
	IsIdle() bool
}

// Channel is a single vehicle's input holder. It is written once per fixed
// step by exactly one Source and read by the integrator in the same step.
// Both run on the simulation goroutine, so no locking is needed.
type Channel struct {
	axes Axes
}

// Write replaces all four axes.
func (c *Channel) Write(a Axes) {
	c.axes = a
}

// Read returns the current axes. A nil channel reads as centred with zero
// throttle.
func (c *Channel) Read() Axes {
	if c == nil {
		return Axes{}
	}
	return c.axes
}

// IsIdle reports whether the current axes are idle.
func (c *Channel) IsIdle() bool {
	return c.Read().IsIdle()
}

// Source produces inputs for one vehicle. Drive is called once per fixed
// step before the integrator and must write all four axes when it takes
// control of the step.
type Source interface {
	Drive(dt float64, ch *Channel)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(dt float64, ch *Channel)

// Drive calls f.
func (f SourceFunc) Drive(dt float64, ch *Channel) { f(dt, ch) }

// Fixed returns a Source that writes the same axes every step.
func Fixed(a Axes) Source {
	return SourceFunc(func(_ float64, ch *Channel) { ch.Write(a) })
}
