package autopilot

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid autopilot configuration")

// Config tunes the pilot. Times are in seconds, distances in metres.
type Config struct {
	HoverHeight  float64
	Tolerance    float64
	ClimbGain    float64
	BaseThrottle float64
	MaxThrottle  float64

	// HoldGain and HoldDamping shape the altitude hold that takes over once
	// the climb is complete.
	HoldGain    float64
	HoldDamping float64

	HoverPause float64

	PitchSensitivity float64
	RollSensitivity  float64
	MaxPitch         float64
	MaxRoll          float64
	MaxYaw           float64
	TurnTrimRate     float64

	TargetRadius float64
	HomeRadius   float64

	// FleetLoop sends the pilot back out after each delivery. When false
	// the first delivery ends the plan in Success.
	FleetLoop bool
}

// DefaultConfig returns the stock pilot tuning.
func DefaultConfig() Config {
	return Config{
		HoverHeight:      1.5,
		Tolerance:        0.1,
		ClimbGain:        0.5,
		BaseThrottle:     9.8,
		MaxThrottle:      20,
		HoldGain:         1,
		HoldDamping:      0.8,
		HoverPause:       2,
		PitchSensitivity: 2,
		RollSensitivity:  2,
		MaxPitch:         1,
		MaxRoll:          1,
		MaxYaw:           1,
		TurnTrimRate:     10,
		TargetRadius:     0.25,
		HomeRadius:       0.5,
		FleetLoop:        true,
	}
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"tolerance", c.Tolerance},
		{"climbGain", c.ClimbGain},
		{"maxThrottle", c.MaxThrottle},
		{"holdGain", c.HoldGain},
		{"holdDamping", c.HoldDamping},
		{"hoverPause", c.HoverPause},
		{"pitchSensitivity", c.PitchSensitivity},
		{"rollSensitivity", c.RollSensitivity},
		{"maxPitch", c.MaxPitch},
		{"maxRoll", c.MaxRoll},
		{"maxYaw", c.MaxYaw},
		{"turnTrimRate", c.TurnTrimRate},
		{"targetRadius", c.TargetRadius},
		{"homeRadius", c.HomeRadius},
	}
	for _, f := range fields {
		if f.v < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	if c.HoverHeight <= 0 {
		return fmt.Errorf("%w: hoverHeight must be positive, got %v", ErrInvalidConfig, c.HoverHeight)
	}
	return nil
}
