// Package storage defines where recorded flight telemetry goes.
package storage

import (
	"errors"

	"github.com/OCAP2/flightcore/pkg/core"
)

// ErrNoMission is returned when data arrives before StartMission or after
// EndMission.
var ErrNoMission = errors.New("no mission in progress")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Mission management; StartMission assigns mission.ID when the backend
	// owns the identifier.
	StartMission(mission *core.Mission) error
	EndMission() error

	AddVehicle(v *core.Vehicle) error

	RecordVehicleState(s *core.VehicleState) error
	RecordStateChange(c *core.StateChange) error
	RecordArrival(e *core.ArrivalEvent) error
	RecordMatchResult(r *core.MatchResult) error
}

// Exporter is an optional interface for backends that write a file per
// mission.
type Exporter interface {
	ExportedPath() string
}
