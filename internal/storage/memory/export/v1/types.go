// Package v1 is the version 1 JSON layout of a recorded flight mission.
// Samples are positional arrays to keep long recordings small.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure.
type Export struct {
	FormatVersion int            `json:"formatVersion"`
	MissionName   string         `json:"missionName"`
	StartTime     string         `json:"startTime"`
	FixedRate     float64        `json:"fixedRate"`
	FleetLoop     bool           `json:"fleetLoop"`
	Seed          int64          `json:"seed"`
	EndTick       uint           `json:"endTick"`
	Origin        []float64      `json:"origin,omitempty"` // lon, lat, alt
	Parameters    map[string]any `json:"parameters,omitempty"`
	Entities      []Entity       `json:"entities"`
	Events        [][]any        `json:"events"`
	Result        *Result        `json:"result,omitempty"`
}

// Entity is one vehicle. Entities[id] holds the vehicle with that id.
type Entity struct {
	ID           uint16    `json:"id"`
	Callsign     string    `json:"callsign"`
	Autopilot    bool      `json:"autopilot"`
	Home         []float64 `json:"home"`
	HomeYaw      float64   `json:"homeYaw"`
	Positions    [][]any   `json:"positions"`    // [tick, [x, y, z], yaw, speed, state, stage, [pitch, roll, yaw, throttle]]
	StateChanges [][]any   `json:"stateChanges"` // [tick, from, to]
}

// Result is the final tally.
type Result struct {
	Tick      uint           `json:"tick"`
	Winner    string         `json:"winner"`
	Reason    string         `json:"reason"`
	ElapsedMs int64          `json:"elapsedMs"`
	Scores    map[uint16]int `json:"scores"`
}
