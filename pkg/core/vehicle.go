// pkg/core/vehicle.go
package core

import (
	"math"
	"time"
)

// Vehicle represents one quadcopter registered with a mission.
type Vehicle struct {
	ID        uint16
	Callsign  string
	JoinTime  time.Time
	Home      Position3D
	HomeYaw   float64
	Autopilot bool
}

// Axes mirrors the four control inputs for recording.
type Axes struct {
	Pitch    float64 `json:"pitch"`
	Roll     float64 `json:"roll"`
	Yaw      float64 `json:"yaw"`
	Throttle float64 `json:"throttle"`
}

// VehicleState represents vehicle state at one fixed step.
// VehicleID references Vehicle.ID.
type VehicleState struct {
	VehicleID uint16
	Time      time.Time
	Tick      uint
	Position  Position3D
	Velocity  Position3D
	Yaw       float64 // degrees
	PitchTilt float64 // cosmetic, degrees
	RollTilt  float64 // cosmetic, degrees
	UpForce   float64
	State     State
	Stage     Stage
	Input     Axes
	Scripted  bool
}

// Speed returns the velocity magnitude.
func (s VehicleState) Speed() float64 {
	v := s.Velocity
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}
