package sim

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every scheduler configuration error.
var ErrInvalidConfig = errors.New("invalid simulation configuration")

// Config drives the world scheduler.
type Config struct {
	MissionName string
	// FixedRate is the number of fixed steps per simulated second.
	FixedRate float64
	// Duration caps the simulated time of one run.
	Duration  time.Duration
	FleetSize int
	// AutoStartDelay powers every vehicle on after this many seconds.
	// Negative disables the auto start.
	AutoStartDelay float64
	// Realtime paces steps to the wall clock.
	Realtime  bool
	Autopilot bool
	// ReturnHome flies airborne vehicles home and lands them when the
	// match ends, before the result is recorded.
	ReturnHome bool
}

// DefaultConfig returns a 50 Hz, two minute run of three autonomous vehicles.
func DefaultConfig() Config {
	return Config{
		MissionName:    "flightsim",
		FixedRate:      50,
		Duration:       2 * time.Minute,
		FleetSize:      3,
		AutoStartDelay: 2,
		Autopilot:      true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.FixedRate <= 0:
		return fmt.Errorf("%w: fixedRate must be positive, got %v", ErrInvalidConfig, c.FixedRate)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfig, c.Duration)
	case c.FleetSize < 0:
		return fmt.Errorf("%w: fleetSize must not be negative, got %d", ErrInvalidConfig, c.FleetSize)
	}
	return nil
}

// Step returns the fixed step length in seconds.
func (c Config) Step() float64 { return 1 / c.FixedRate }

// Interval returns the fixed step as a wall clock duration.
func (c Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.FixedRate)
}
