// Package convert maps recorded core values onto GORM rows.
package convert

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/model"
	"github.com/OCAP2/flightcore/pkg/core"
	"gorm.io/datatypes"
)

// Converter projects local positions through a geo reference.
type Converter struct {
	ref *geo.Reference
}

// New returns a converter. A nil reference pins the origin to 0,0.
func New(ref *geo.Reference) *Converter {
	if ref == nil {
		ref, _ = geo.NewReference(0, 0, 0)
	}
	return &Converter{ref: ref}
}

// Mission converts a mission; parameters are stored as JSON.
func (c *Converter) Mission(m core.Mission) (model.Mission, error) {
	params, err := json.Marshal(m.Parameters)
	if err != nil {
		return model.Mission{}, fmt.Errorf("encoding mission parameters: %w", err)
	}
	return model.Mission{
		MissionName: m.Name,
		StartTime:   m.StartTime,
		FixedRate:   float32(m.FixedRate),
		FleetSize:   uint16(m.FleetSize),
		FleetLoop:   m.FleetLoop,
		Seed:        m.Seed,
		Parameters:  datatypes.JSON(params),
	}, nil
}

func (c *Converter) Vehicle(missionID uint, v core.Vehicle) (model.Vehicle, error) {
	home, err := c.ref.Point(v.Home)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("vehicle %d home: %w", v.ID, err)
	}
	return model.Vehicle{
		MissionID: missionID,
		ObjectID:  v.ID,
		JoinTime:  v.JoinTime,
		Callsign:  v.Callsign,
		Home:      home,
		HomeYaw:   float32(v.HomeYaw),
		Autopilot: v.Autopilot,
	}, nil
}

func (c *Converter) VehicleState(missionID uint, s core.VehicleState) (model.VehicleState, error) {
	pos, err := c.ref.Point(s.Position)
	if err != nil {
		return model.VehicleState{}, fmt.Errorf("vehicle %d state: %w", s.VehicleID, err)
	}
	return model.VehicleState{
		Time:            s.Time,
		MissionID:       missionID,
		Tick:            s.Tick,
		VehicleObjectID: s.VehicleID,
		Position:        pos,
		Local: datatypes.NewJSONType(model.LocalFrame{
			X: s.Position.X, Y: s.Position.Y, Z: s.Position.Z,
			VX: s.Velocity.X, VY: s.Velocity.Y, VZ: s.Velocity.Z,
		}),
		Speed:     float32(s.Speed()),
		Yaw:       float32(s.Yaw),
		PitchTilt: float32(s.PitchTilt),
		RollTilt:  float32(s.RollTilt),
		UpForce:   float32(s.UpForce),
		State:     s.State.String(),
		Stage:     s.Stage.String(),
		Pitch:     float32(s.Input.Pitch),
		Roll:      float32(s.Input.Roll),
		YawInput:  float32(s.Input.Yaw),
		Throttle:  float32(s.Input.Throttle),
		Scripted:  s.Scripted,
	}, nil
}

func (c *Converter) StateChange(missionID uint, ch core.StateChange) model.StateChange {
	return model.StateChange{
		MissionID:       missionID,
		Tick:            ch.Tick,
		VehicleObjectID: ch.VehicleID,
		FromState:       ch.From.String(),
		ToState:         ch.To.String(),
	}
}

func (c *Converter) Arrival(missionID uint, e core.ArrivalEvent) (model.ArrivalEvent, error) {
	pos, err := c.ref.Point(e.Position)
	if err != nil {
		return model.ArrivalEvent{}, fmt.Errorf("vehicle %d arrival: %w", e.VehicleID, err)
	}
	return model.ArrivalEvent{
		MissionID:       missionID,
		Tick:            e.Tick,
		VehicleObjectID: e.VehicleID,
		Kind:            string(e.Kind),
		PickupID:        e.PickupID,
		Position:        pos,
	}, nil
}

// MatchResult converts the final tally. Scores are keyed by vehicle id.
func (c *Converter) MatchResult(missionID uint, r core.MatchResult) (model.MatchResult, error) {
	scores := make(map[string]int, len(r.Scores))
	for id, v := range r.Scores {
		scores[strconv.Itoa(int(id))] = v
	}
	raw, err := json.Marshal(scores)
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("encoding scores: %w", err)
	}
	return model.MatchResult{
		MissionID: missionID,
		Time:      r.Time,
		Tick:      r.Tick,
		Winner:    r.Winner,
		Reason:    r.Reason,
		ElapsedMs: r.Elapsed.Milliseconds(),
		Scores:    datatypes.JSON(raw),
	}, nil
}
