// Package match holds the collaborators around the autonomous pilots: the
// pickup field, target assignment, scoring and the match clock.
package match

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every match configuration error.
var ErrInvalidConfig = errors.New("invalid match configuration")

// Config describes one match. SpawnMin and SpawnMax are XZ corners.
type Config struct {
	Duration         float64
	Pickups          int
	SpawnMin         [2]float64
	SpawnMax         [2]float64
	SpawnHeight      float64
	MinSeparation    float64
	SpawnAttempts    int
	TriggerRadius    float64
	PointsPerCapture int
	Seed             uint64
}

// DefaultConfig returns a one minute match over a 16 m square.
func DefaultConfig() Config {
	return Config{
		Duration:         60,
		Pickups:          5,
		SpawnMin:         [2]float64{-8, -8},
		SpawnMax:         [2]float64{8, 8},
		SpawnHeight:      1.5,
		MinSeparation:    2,
		SpawnAttempts:    64,
		TriggerRadius:    0.4,
		PointsPerCapture: 50,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfig, c.Duration)
	case c.Pickups < 0:
		return fmt.Errorf("%w: pickups must not be negative, got %d", ErrInvalidConfig, c.Pickups)
	case c.SpawnMin[0] > c.SpawnMax[0] || c.SpawnMin[1] > c.SpawnMax[1]:
		return fmt.Errorf("%w: spawn area %v..%v is empty", ErrInvalidConfig, c.SpawnMin, c.SpawnMax)
	case c.MinSeparation < 0 || c.TriggerRadius < 0:
		return fmt.Errorf("%w: distances must not be negative", ErrInvalidConfig)
	case c.SpawnAttempts < 1:
		return fmt.Errorf("%w: spawnAttempts must be at least 1, got %d", ErrInvalidConfig, c.SpawnAttempts)
	}
	return nil
}
