// Package websocket streams flight telemetry to a remote collector.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/OCAP2/flightcore/pkg/streaming"
)

// ErrSendQueueFull is returned when a sample could not be queued.
var ErrSendQueueFull = errors.New("websocket send queue full")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	// Backoff is the first reconnect delay; it doubles per attempt.
	Backoff time.Duration
}

// Backend streams mission data over WebSocket.
type Backend struct {
	conn   *connection
	cfg    Config
	ref    *geo.Reference
	active atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new WebSocket storage backend. A nil reference pins the
// local origin to 0,0.
func New(cfg Config, ref *geo.Reference, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if ref == nil {
		ref, _ = geo.NewReference(0, 0, 0)
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket"), cfg.Backoff),
		cfg:  cfg,
		ref:  ref,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were discarded on a full queue.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// Reconnects returns how many times the socket was re-established.
func (b *Backend) Reconnects() uint64 {
	return b.conn.reconnects.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// send marshals the payload and hands it to the write loop without waiting.
func (b *Backend) send(msgType string, payload any) error {
	if !b.active.Load() {
		return storage.ErrNoMission
	}
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if !b.conn.send(data) {
		return ErrSendQueueFull
	}
	return nil
}

// StartMission sends the mission and waits for the server ack. The message
// is replayed after a reconnect.
func (b *Backend) StartMission(mission *core.Mission) error {
	lon, lat, alt := b.ref.Origin()
	data, err := marshalEnvelope(streaming.TypeStartMission, streaming.NewStartMission(mission, [3]float64{lon, lat, alt}))
	if err != nil {
		return err
	}
	b.conn.startRoster(data)

	if err := b.conn.sendAndWait(data, streaming.TypeStartMission, ackTimeout); err != nil {
		return err
	}
	b.active.Store(true)
	return nil
}

// EndMission sends end_mission and waits for server ack.
func (b *Backend) EndMission() error {
	if !b.active.Swap(false) {
		return storage.ErrNoMission
	}
	data, err := marshalEnvelope(streaming.TypeEndMission, nil)
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndMission, ackTimeout)
	}
	b.conn.startRoster(nil)
	return err
}

// AddVehicle sends add_vehicle and keeps it for replay after a reconnect.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	if !b.active.Load() {
		return storage.ErrNoMission
	}
	data, err := marshalEnvelope(streaming.TypeAddVehicle, streaming.NewVehicle(v))
	if err != nil {
		return err
	}
	b.conn.remember(data)
	if !b.conn.send(data) {
		return ErrSendQueueFull
	}
	return nil
}

func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	lon, lat, alt := b.ref.WGS84(s.Position)
	return b.send(streaming.TypeVehicleState, streaming.NewVehicleState(s, lon, lat, alt))
}

func (b *Backend) RecordStateChange(c *core.StateChange) error {
	return b.send(streaming.TypeStateChange, streaming.NewStateChange(c))
}

func (b *Backend) RecordArrival(e *core.ArrivalEvent) error {
	return b.send(streaming.TypeArrival, streaming.NewArrival(e))
}

func (b *Backend) RecordMatchResult(r *core.MatchResult) error {
	return b.send(streaming.TypeMatchResult, streaming.NewMatchResult(r))
}
