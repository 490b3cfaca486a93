// Package worker forwards recorded simulation events from the dispatcher to
// the storage backend and InfluxDB.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/flightcore/internal/influx"
	"github.com/OCAP2/flightcore/internal/mission"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/pkg/core"
)

// ErrUnexpectedPayload is returned when an event carries the wrong type.
var ErrUnexpectedPayload = errors.New("unexpected payload")

// Telemetry is the subset of the InfluxDB manager the worker writes to.
type Telemetry interface {
	WriteVehicleState(s *core.VehicleState) error
	WriteArrival(e *core.ArrivalEvent) error
	WriteMatchResult(r *core.MatchResult) error
	Close() error
}

var _ Telemetry = (*influx.Manager)(nil)

// Dependencies holds all dependencies for the worker manager. Backend and
// Telemetry are optional.
type Dependencies struct {
	Backend   storage.Backend
	Telemetry Telemetry
	Mission   *mission.Context
	Logger    *slog.Logger
}

// Stats counts what reached the backend.
type Stats struct {
	Vehicles     uint64
	States       uint64
	StateChanges uint64
	Arrivals     uint64
	Results      uint64
	Failed       uint64
}

// Manager owns the backend for the lifetime of a run.
type Manager struct {
	deps Dependencies
	log  *slog.Logger

	mu       sync.Mutex
	started  bool
	ended    bool
	finished bool

	vehicles     atomic.Uint64
	states       atomic.Uint64
	stateChanges atomic.Uint64
	arrivals     atomic.Uint64
	results      atomic.Uint64
	failed       atomic.Uint64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Mission == nil {
		deps.Mission = mission.NewContext()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{deps: deps, log: log.With("component", "worker")}
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Vehicles:     m.vehicles.Load(),
		States:       m.states.Load(),
		StateChanges: m.stateChanges.Load(),
		Arrivals:     m.arrivals.Load(),
		Results:      m.results.Load(),
		Failed:       m.failed.Load(),
	}
}

// Finish ends the recorded mission and closes the backend and telemetry.
// Call it after the dispatcher has drained.
func (m *Manager) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return nil
	}
	m.finished = true

	var errs []error
	if b := m.deps.Backend; b != nil {
		if m.started {
			if err := b.EndMission(); err != nil {
				errs = append(errs, fmt.Errorf("ending mission: %w", err))
			}
			if exp, ok := b.(storage.Exporter); ok && exp.ExportedPath() != "" {
				m.log.Info("Recording written", "path", exp.ExportedPath())
			}
		}
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing backend: %w", err))
		}
	}
	if t := m.deps.Telemetry; t != nil {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing telemetry: %w", err))
		}
	}

	s := m.Stats()
	m.log.Info("Recording finished",
		"mission", m.deps.Mission.Name(), "ended", m.ended,
		"vehicles", s.Vehicles, "states", s.States, "stateChanges", s.StateChanges,
		"arrivals", s.Arrivals, "failed", s.Failed)
	m.deps.Mission.Clear()
	return errors.Join(errs...)
}

// record runs one backend write and counts its outcome.
func (m *Manager) record(counter *atomic.Uint64, write func(storage.Backend) error) error {
	b := m.deps.Backend
	if b == nil {
		return nil
	}
	if err := write(b); err != nil {
		m.failed.Add(1)
		return err
	}
	counter.Add(1)
	return nil
}

// payload accepts T or *T.
func payload[T any](p any) (*T, error) {
	switch v := p.(type) {
	case T:
		return &v, nil
	case *T:
		if v != nil {
			return v, nil
		}
	}
	var zero T
	return nil, fmt.Errorf("%w: got %T, want %T", ErrUnexpectedPayload, p, zero)
}
