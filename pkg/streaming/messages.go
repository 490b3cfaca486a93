// Package streaming defines the JSON messages a flight recorder streams to a
// remote collector over WebSocket.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/OCAP2/flightcore/pkg/core"
)

// Message types.
const (
	TypeStartMission = "start_mission"
	TypeEndMission   = "end_mission"
	TypeAddVehicle   = "add_vehicle"
	TypeVehicleState = "vehicle_state"
	TypeStateChange  = "state_change"
	TypeArrival      = "arrival"
	TypeMatchResult  = "match_result"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartMissionPayload describes the run being streamed.
type StartMissionPayload struct {
	ID         uint           `json:"id"`
	Name       string         `json:"name"`
	StartTime  time.Time      `json:"startTime"`
	FixedRate  float64        `json:"fixedRate"`
	FleetSize  int            `json:"fleetSize"`
	FleetLoop  bool           `json:"fleetLoop"`
	Seed       int64          `json:"seed"`
	Origin     [3]float64     `json:"origin"` // lon, lat, alt
	Parameters map[string]any `json:"parameters,omitempty"`
}

func NewStartMission(m *core.Mission, origin [3]float64) StartMissionPayload {
	return StartMissionPayload{
		ID:         m.ID,
		Name:       m.Name,
		StartTime:  m.StartTime,
		FixedRate:  m.FixedRate,
		FleetSize:  m.FleetSize,
		FleetLoop:  m.FleetLoop,
		Seed:       m.Seed,
		Origin:     origin,
		Parameters: m.Parameters,
	}
}

type VehiclePayload struct {
	ID        uint16          `json:"id"`
	Callsign  string          `json:"callsign"`
	JoinTime  time.Time       `json:"joinTime"`
	Home      core.Position3D `json:"home"`
	HomeYaw   float64         `json:"homeYaw"`
	Autopilot bool            `json:"autopilot"`
}

func NewVehicle(v *core.Vehicle) VehiclePayload {
	return VehiclePayload{
		ID:        v.ID,
		Callsign:  v.Callsign,
		JoinTime:  v.JoinTime,
		Home:      v.Home,
		HomeYaw:   v.HomeYaw,
		Autopilot: v.Autopilot,
	}
}

// VehicleStatePayload is one fixed-step sample. Lon and Lat place the
// local position on the globe.
type VehicleStatePayload struct {
	VehicleID uint16          `json:"vehicleId"`
	Tick      uint            `json:"tick"`
	Time      time.Time       `json:"time"`
	Position  core.Position3D `json:"position"`
	Velocity  core.Position3D `json:"velocity"`
	Lon       float64         `json:"lon"`
	Lat       float64         `json:"lat"`
	Alt       float64         `json:"alt"`
	Speed     float64         `json:"speed"`
	Yaw       float64         `json:"yaw"`
	State     string          `json:"state"`
	Stage     string          `json:"stage"`
	Input     core.Axes       `json:"input"`
	Scripted  bool            `json:"scripted"`
}

func NewVehicleState(s *core.VehicleState, lon, lat, alt float64) VehicleStatePayload {
	return VehicleStatePayload{
		VehicleID: s.VehicleID,
		Tick:      s.Tick,
		Time:      s.Time,
		Position:  s.Position,
		Velocity:  s.Velocity,
		Lon:       lon,
		Lat:       lat,
		Alt:       alt,
		Speed:     s.Speed(),
		Yaw:       s.Yaw,
		State:     s.State.String(),
		Stage:     s.Stage.String(),
		Input:     s.Input,
		Scripted:  s.Scripted,
	}
}

type StateChangePayload struct {
	VehicleID uint16 `json:"vehicleId"`
	Tick      uint   `json:"tick"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func NewStateChange(c *core.StateChange) StateChangePayload {
	return StateChangePayload{VehicleID: c.VehicleID, Tick: c.Tick, From: c.From.String(), To: c.To.String()}
}

type ArrivalPayload struct {
	VehicleID uint16          `json:"vehicleId"`
	Tick      uint            `json:"tick"`
	Kind      string          `json:"kind"`
	PickupID  uint            `json:"pickupId"`
	Position  core.Position3D `json:"position"`
}

func NewArrival(e *core.ArrivalEvent) ArrivalPayload {
	return ArrivalPayload{VehicleID: e.VehicleID, Tick: e.Tick, Kind: string(e.Kind), PickupID: e.PickupID, Position: e.Position}
}

type MatchResultPayload struct {
	Tick      uint           `json:"tick"`
	Winner    string         `json:"winner"`
	Reason    string         `json:"reason"`
	ElapsedMs int64          `json:"elapsedMs"`
	Scores    map[uint16]int `json:"scores"`
}

func NewMatchResult(r *core.MatchResult) MatchResultPayload {
	return MatchResultPayload{
		Tick:      r.Tick,
		Winner:    r.Winner,
		Reason:    r.Reason,
		ElapsedMs: r.Elapsed.Milliseconds(),
		Scores:    r.Scores,
	}
}
