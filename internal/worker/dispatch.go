package worker

import (
	"fmt"

	"github.com/OCAP2/flightcore/internal/dispatcher"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/pkg/core"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Mission and vehicle registration run inline so they land before any
	// buffered sample.
	d.Register(core.CmdStartMission, m.handleStartMission, dispatcher.Logged())
	d.Register(core.CmdNewVehicle, m.handleNewVehicle, dispatcher.Logged())
	d.Register(core.CmdEndMission, m.handleEndMission, dispatcher.Logged())

	// One sample per vehicle per fixed step
	d.Register(core.CmdVehicleState, m.handleVehicleState, dispatcher.Buffered(10000), dispatcher.DropOldest(), dispatcher.Logged())

	d.Register(core.CmdStateChanged, m.handleStateChange, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(core.CmdArrival, m.handleArrival, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(core.CmdMatchResult, m.handleMatchResult, dispatcher.Buffered(10), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleStartMission(e dispatcher.Event) (any, error) {
	mis, err := payload[core.Mission](e.Payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil, fmt.Errorf("mission %q already recording", m.deps.Mission.Name())
	}

	if b := m.deps.Backend; b != nil {
		if err := b.StartMission(mis); err != nil {
			return nil, fmt.Errorf("failed to start mission: %w", err)
		}
	}
	m.started = true
	m.deps.Mission.SetMission(mis)
	m.log.Info("Mission recording started", "mission", mis.Name, "id", mis.ID)
	return mis.ID, nil
}

// handleEndMission only marks the end; Finish closes the backend once the
// buffered handlers have drained.
func (m *Manager) handleEndMission(e dispatcher.Event) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil, storage.ErrNoMission
	}
	m.ended = true
	return nil, nil
}

func (m *Manager) handleNewVehicle(e dispatcher.Event) (any, error) {
	v, err := payload[core.Vehicle](e.Payload)
	if err != nil {
		return nil, err
	}
	if err := m.record(&m.vehicles, func(b storage.Backend) error { return b.AddVehicle(v) }); err != nil {
		return nil, fmt.Errorf("failed to add vehicle %d: %w", v.ID, err)
	}
	return nil, nil
}

func (m *Manager) handleVehicleState(e dispatcher.Event) (any, error) {
	s, err := payload[core.VehicleState](e.Payload)
	if err != nil {
		return nil, err
	}
	m.deps.Mission.ObserveTick(s.Tick)

	if t := m.deps.Telemetry; t != nil {
		if err := t.WriteVehicleState(s); err != nil {
			m.log.Warn("Telemetry write failed", "vehicle", s.VehicleID, "error", err)
		}
	}
	if err := m.record(&m.states, func(b storage.Backend) error { return b.RecordVehicleState(s) }); err != nil {
		return nil, fmt.Errorf("failed to record vehicle %d state: %w", s.VehicleID, err)
	}
	return nil, nil
}

func (m *Manager) handleStateChange(e dispatcher.Event) (any, error) {
	c, err := payload[core.StateChange](e.Payload)
	if err != nil {
		return nil, err
	}
	m.log.Debug("Vehicle state changed", "vehicle", c.VehicleID, "from", c.From.String(), "to", c.To.String(), "tick", c.Tick)
	if err := m.record(&m.stateChanges, func(b storage.Backend) error { return b.RecordStateChange(c) }); err != nil {
		return nil, fmt.Errorf("failed to record state change: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleArrival(e dispatcher.Event) (any, error) {
	a, err := payload[core.ArrivalEvent](e.Payload)
	if err != nil {
		return nil, err
	}
	m.log.Info("Arrival", "vehicle", a.VehicleID, "kind", string(a.Kind), "pickup", a.PickupID, "tick", a.Tick)

	if t := m.deps.Telemetry; t != nil {
		if err := t.WriteArrival(a); err != nil {
			m.log.Warn("Telemetry write failed", "vehicle", a.VehicleID, "error", err)
		}
	}
	if err := m.record(&m.arrivals, func(b storage.Backend) error { return b.RecordArrival(a) }); err != nil {
		return nil, fmt.Errorf("failed to record arrival: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleMatchResult(e dispatcher.Event) (any, error) {
	r, err := payload[core.MatchResult](e.Payload)
	if err != nil {
		return nil, err
	}
	if t := m.deps.Telemetry; t != nil {
		if err := t.WriteMatchResult(r); err != nil {
			m.log.Warn("Telemetry write failed", "error", err)
		}
	}
	if err := m.record(&m.results, func(b storage.Backend) error { return b.RecordMatchResult(r) }); err != nil {
		return nil, fmt.Errorf("failed to record match result: %w", err)
	}
	return nil, nil
}
