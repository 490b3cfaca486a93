// pkg/core/mission.go
package core

import "time"

// Position3D is a point in the local simulation frame. Y is up.
type Position3D struct {
	X float64 `json:"x"` // east
	Y float64 `json:"y"` // height above ground
	Z float64 `json:"z"` // north
}

// Mission represents one recorded simulation run
type Mission struct {
	ID         uint
	Name       string
	StartTime  time.Time
	FixedRate  float64 // fixed steps per second
	FleetSize  int
	FleetLoop  bool
	Seed       int64
	Parameters map[string]any
}

// MatchResult is the final tally written when a mission ends.
type MatchResult struct {
	Time    time.Time
	Tick    uint
	Winner  string
	Scores  map[uint16]int
	Reason  string
	Elapsed time.Duration
}
