package v1

import (
	"cmp"
	"slices"
	"time"

	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/pkg/core"
)

// MissionData contains all the data needed to build an export
type MissionData struct {
	Mission   *core.Mission
	Reference *geo.Reference
	Vehicles  map[uint16]*VehicleRecord
	Arrivals  []core.ArrivalEvent
	Result    *core.MatchResult
}

// VehicleRecord groups a vehicle with all its time-series data
type VehicleRecord struct {
	Vehicle      core.Vehicle
	States       []core.VehicleState
	StateChanges []core.StateChange
}

func vec(p core.Position3D) []float64 {
	return []float64{p.X, p.Y, p.Z}
}

// Build creates an Export from the mission data
func Build(data *MissionData) Export {
	m := data.Mission
	export := Export{
		FormatVersion: FormatVersion,
		MissionName:   m.Name,
		StartTime:     m.StartTime.UTC().Format(time.RFC3339),
		FixedRate:     m.FixedRate,
		FleetLoop:     m.FleetLoop,
		Seed:          m.Seed,
		Parameters:    m.Parameters,
		Entities:      make([]Entity, 0),
		Events:        make([][]any, 0),
	}
	if data.Reference != nil {
		lon, lat, alt := data.Reference.Origin()
		export.Origin = []float64{lon, lat, alt}
	}

	var maxID uint16
	for id := range data.Vehicles {
		maxID = max(maxID, id)
	}
	if len(data.Vehicles) > 0 {
		export.Entities = make([]Entity, maxID+1)
	}

	var endTick uint
	for id, record := range data.Vehicles {
		v := record.Vehicle
		entity := Entity{
			ID:           v.ID,
			Callsign:     v.Callsign,
			Autopilot:    v.Autopilot,
			Home:         vec(v.Home),
			HomeYaw:      v.HomeYaw,
			Positions:    make([][]any, 0, len(record.States)),
			StateChanges: make([][]any, 0, len(record.StateChanges)),
		}
		for _, s := range record.States {
			entity.Positions = append(entity.Positions, []any{
				s.Tick,
				vec(s.Position),
				s.Yaw,
				s.Speed(),
				s.State.String(),
				s.Stage.String(),
				[]float64{s.Input.Pitch, s.Input.Roll, s.Input.Yaw, s.Input.Throttle},
			})
			endTick = max(endTick, s.Tick)
		}
		for _, c := range record.StateChanges {
			entity.StateChanges = append(entity.StateChanges, []any{c.Tick, c.From.String(), c.To.String()})
		}
		export.Entities[id] = entity
	}

	// [tick, kind, vehicleId, pickupId, [x, y, z]]
	arrivals := slices.Clone(data.Arrivals)
	slices.SortStableFunc(arrivals, func(a, b core.ArrivalEvent) int {
		return cmp.Compare(a.Tick, b.Tick)
	})
	for _, e := range arrivals {
		export.Events = append(export.Events, []any{e.Tick, string(e.Kind), e.VehicleID, e.PickupID, vec(e.Position)})
	}

	if r := data.Result; r != nil {
		export.Result = &Result{
			Tick:      r.Tick,
			Winner:    r.Winner,
			Reason:    r.Reason,
			ElapsedMs: r.Elapsed.Milliseconds(),
			Scores:    r.Scores,
		}
		endTick = max(endTick, r.Tick)
	}
	export.EndTick = endTick

	return export
}
