// Package memory keeps a mission in memory and exports it as JSON when the
// mission ends.
package memory

import (
	"sync"

	"github.com/OCAP2/flightcore/internal/config"
	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/storage"
	v1 "github.com/OCAP2/flightcore/internal/storage/memory/export/v1"
	"github.com/OCAP2/flightcore/pkg/core"
)

// Backend stores mission data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	ref     *geo.Reference
	mission *core.Mission

	vehicles map[uint16]*v1.VehicleRecord
	arrivals []core.ArrivalEvent
	result   *core.MatchResult

	nextMissionID  uint
	lastExportPath string
	mu             sync.RWMutex
}

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

// New creates a new memory backend. ref may be nil.
func New(cfg config.MemoryConfig, ref *geo.Reference) *Backend {
	return &Backend{
		cfg:      cfg,
		ref:      ref,
		vehicles: make(map[uint16]*v1.VehicleRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartMission begins recording a new mission
func (b *Backend) StartMission(mission *core.Mission) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextMissionID++
	mission.ID = b.nextMissionID
	b.mission = mission

	b.vehicles = make(map[uint16]*v1.VehicleRecord)
	b.arrivals = nil
	b.result = nil
	return nil
}

// EndMission exports the mission and stops recording.
func (b *Backend) EndMission() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return storage.ErrNoMission
	}
	err := b.exportJSON()
	b.mission = nil
	return err
}

// AddVehicle registers a vehicle; a repeated id replaces the earlier record.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return storage.ErrNoMission
	}
	b.vehicles[v.ID] = &v1.VehicleRecord{
		Vehicle: *v,
		States:  make([]core.VehicleState, 0),
	}
	return nil
}

// RecordVehicleState appends a sample. Samples of unknown vehicles are dropped.
func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return storage.ErrNoMission
	}
	if record, ok := b.vehicles[s.VehicleID]; ok {
		record.States = append(record.States, *s)
	}
	return nil
}

func (b *Backend) RecordStateChange(c *core.StateChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return storage.ErrNoMission
	}
	if record, ok := b.vehicles[c.VehicleID]; ok {
		record.StateChanges = append(record.StateChanges, *c)
	}
	return nil
}

func (b *Backend) RecordArrival(e *core.ArrivalEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return storage.ErrNoMission
	}
	b.arrivals = append(b.arrivals, *e)
	return nil
}

func (b *Backend) RecordMatchResult(r *core.MatchResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return storage.ErrNoMission
	}
	res := *r
	b.result = &res
	return nil
}

// GetVehicle looks up a registered vehicle.
func (b *Backend) GetVehicle(id uint16) (*core.Vehicle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.vehicles[id]; ok {
		v := record.Vehicle
		return &v, true
	}
	return nil, false
}

// StateCount returns the number of samples held for a vehicle.
func (b *Backend) StateCount(id uint16) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.vehicles[id]; ok {
		return len(record.States)
	}
	return 0
}

// ExportedPath returns the file written by the last EndMission.
func (b *Backend) ExportedPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
