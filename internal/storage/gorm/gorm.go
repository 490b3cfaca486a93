// Package gormstorage implements storage.Backend on any GORM dialect,
// batching rows in queues that a background writer flushes.
package gormstorage

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/flightcore/internal/database"
	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/model"
	"github.com/OCAP2/flightcore/internal/model/convert"
	"github.com/OCAP2/flightcore/internal/queue"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Reference     *geo.Reference
	Logger        *slog.Logger
	DBLogger      zerolog.Logger
	FlushInterval time.Duration
}

type queues struct {
	Vehicles      *queue.Queue[model.Vehicle]
	VehicleStates *queue.Queue[model.VehicleState]
	StateChanges  *queue.Queue[model.StateChange]
	Arrivals      *queue.Queue[model.ArrivalEvent]
	Results       *queue.Queue[model.MatchResult]
}

func newQueues() *queues {
	return &queues{
		Vehicles:      queue.New[model.Vehicle](),
		VehicleStates: queue.New[model.VehicleState](),
		StateChanges:  queue.New[model.StateChange](),
		Arrivals:      queue.New[model.ArrivalEvent](),
		Results:       queue.New[model.MatchResult](),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	conv      *convert.Converter
	log       *slog.Logger
	queues    *queues
	missionID atomic.Uint64

	flushMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps:   deps,
		conv:   convert.New(deps.Reference),
		log:    log.With("backend", "gorm"),
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database connection")
	}
	if err := database.Migrate(b.deps.DB, b.deps.DBLogger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the writer and flushes whatever is still queued.
func (b *Backend) Close() error {
	if b.stop == nil {
		return nil
	}
	close(b.stop)
	<-b.done
	b.stop = nil
	b.Flush()
	return nil
}

// StartMission inserts the mission row so later rows can reference it.
func (b *Backend) StartMission(m *core.Mission) error {
	row, err := b.conv.Mission(*m)
	if err != nil {
		return err
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new mission: %w", err)
	}
	m.ID = row.ID
	b.missionID.Store(uint64(row.ID))
	b.log.Info("Mission started", "mission", m.Name, "id", row.ID)
	return nil
}

// EndMission flushes the queues and detaches the mission.
func (b *Backend) EndMission() error {
	if b.mission() == 0 {
		return storage.ErrNoMission
	}
	b.Flush()
	b.missionID.Store(0)
	return nil
}

func (b *Backend) mission() uint {
	return uint(b.missionID.Load())
}

func (b *Backend) AddVehicle(v *core.Vehicle) error {
	id := b.mission()
	if id == 0 {
		return storage.ErrNoMission
	}
	row, err := b.conv.Vehicle(id, *v)
	if err != nil {
		return err
	}
	b.queues.Vehicles.Push(row)
	return nil
}

func (b *Backend) RecordVehicleState(s *core.VehicleState) error {
	id := b.mission()
	if id == 0 {
		return storage.ErrNoMission
	}
	row, err := b.conv.VehicleState(id, *s)
	if err != nil {
		return err
	}
	b.queues.VehicleStates.Push(row)
	return nil
}

func (b *Backend) RecordStateChange(c *core.StateChange) error {
	id := b.mission()
	if id == 0 {
		return storage.ErrNoMission
	}
	b.queues.StateChanges.Push(b.conv.StateChange(id, *c))
	return nil
}

func (b *Backend) RecordArrival(e *core.ArrivalEvent) error {
	id := b.mission()
	if id == 0 {
		return storage.ErrNoMission
	}
	row, err := b.conv.Arrival(id, *e)
	if err != nil {
		return err
	}
	b.queues.Arrivals.Push(row)
	return nil
}

func (b *Backend) RecordMatchResult(r *core.MatchResult) error {
	id := b.mission()
	if id == 0 {
		return storage.ErrNoMission
	}
	row, err := b.conv.MatchResult(id, *r)
	if err != nil {
		return err
	}
	b.queues.Results.Push(row)
	return nil
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	q := b.queues
	return q.Vehicles.Len() + q.VehicleStates.Len() + q.StateChanges.Len() + q.Arrivals.Len() + q.Results.Len()
}

// Flush writes every queue, parents first.
func (b *Backend) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	db := b.deps.DB
	writeQueue(db, b.queues.Vehicles, "vehicles", b.log)
	writeQueue(db, b.queues.VehicleStates, "vehicle states", b.log)
	writeQueue(db, b.queues.StateChanges, "state changes", b.log)
	writeQueue(db, b.queues.Arrivals, "arrival events", b.log)
	writeQueue(db, b.queues.Results, "match results", b.log)
}

// writeQueue writes all items from a queue in one transaction. Failed
// batches go back to the front of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if q.Empty() {
		return
	}

	items := q.Drain()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		q.Requeue(items...)
		return
	}
	log.Debug("Wrote rows", "table", name, "count", len(items))
}

func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}
