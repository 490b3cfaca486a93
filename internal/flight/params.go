package flight

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParams wraps every parameter validation failure.
var ErrInvalidParams = errors.New("invalid vehicle parameters")

// Mode selects the horizontal velocity decay used while the sticks are
// centred.
type Mode uint8

const (
	// Positioning brakes quickly and stops vertical drift almost at once.
	Positioning Mode = iota
	// Attitude lets the vehicle coast.
	Attitude
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "positioning", "gps":
		return Positioning, nil
	case "attitude", "atti":
		return Attitude, nil
	default:
		return Positioning, fmt.Errorf("%w: unknown flight mode %q", ErrInvalidParams, s)
	}
}

func (m Mode) String() string {
	if m == Attitude {
		return "attitude"
	}
	return "positioning"
}

// Params are the tunable vehicle constants. Times are in seconds, angles
// in degrees, forces in newtons.
type Params struct {
	Mass          float64
	UpwardForce   float64
	DownwardForce float64
	SidewardForce float64
	ForwardForce  float64
	MaxSpeed      float64
	// MaxYawSpeed is the heading change per fixed step at full yaw input.
	MaxYawSpeed    float64
	MaxRollTilt    float64
	MaxPitchTilt   float64
	TiltSmoothTime float64

	SlowDownPositioning float64
	SlowDownAttitude    float64
	SlowDownVertical    float64
	// HoverBand is the half-width around mass*g inside which the lift
	// force counts as hovering.
	HoverBand float64
	Mode      Mode

	EngineStartDelay float64

	ReturnAltitude       float64
	ReturnSpeed          float64
	ReturnRotateDuration float64
	HomeOffset           float64

	FloorHeight     float64
	LandingDuration float64
	LandingDelay    float64

	ProximityLanding bool
	SafeHeight       float64
}

// DefaultParams returns the stock quadcopter tuning.
func DefaultParams() Params {
	return Params{
		Mass:                 1.36,
		UpwardForce:          4,
		DownwardForce:        2,
		SidewardForce:        6,
		ForwardForce:         6,
		MaxSpeed:             8,
		MaxYawSpeed:          2.5,
		MaxRollTilt:          25,
		MaxPitchTilt:         25,
		TiltSmoothTime:       0.1,
		SlowDownPositioning:  0.5,
		SlowDownAttitude:     2,
		SlowDownVertical:     0.1,
		HoverBand:            0.5,
		Mode:                 Positioning,
		EngineStartDelay:     1,
		ReturnAltitude:       10,
		ReturnSpeed:          3,
		ReturnRotateDuration: 4,
		HomeOffset:           0.6,
		FloorHeight:          0.1564,
		LandingDuration:      3,
		LandingDelay:         2,
		SafeHeight:           0.6,
	}
}

// Validate reports the first out-of-range parameter.
func (p Params) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"mass", p.Mass},
		{"maxSpeed", p.MaxSpeed},
		{"tiltSmoothTime", p.TiltSmoothTime},
		{"slowDownPositioning", p.SlowDownPositioning},
		{"slowDownAttitude", p.SlowDownAttitude},
		{"slowDownVertical", p.SlowDownVertical},
		{"returnSpeed", p.ReturnSpeed},
	}
	for _, f := range positive {
		if !(f.v > 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidParams, f.name, f.v)
		}
	}

	nonNegative := []struct {
		name string
		v    float64
	}{
		{"upwardForce", p.UpwardForce},
		{"downwardForce", p.DownwardForce},
		{"sidewardForce", p.SidewardForce},
		{"forwardForce", p.ForwardForce},
		{"maxYawSpeed", p.MaxYawSpeed},
		{"hoverBand", p.HoverBand},
		{"engineStartDelay", p.EngineStartDelay},
		{"returnRotateDuration", p.ReturnRotateDuration},
		{"landingDuration", p.LandingDuration},
		{"landingDelay", p.LandingDelay},
	}
	for _, f := range nonNegative {
		if f.v < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidParams, f.name, f.v)
		}
	}
	return nil
}

// hoverForce is the lift that exactly cancels gravity.
func (p Params) hoverForce() float64 {
	return p.Mass * gravity
}
