// Package sim runs a fleet of vehicles on a fixed step: input sources and
// integrators first, then physics, pickup triggers and the per-frame work.
// Everything that happens is published as telemetry.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/flightcore/internal/autopilot"
	"github.com/OCAP2/flightcore/internal/flight"
	"github.com/OCAP2/flightcore/internal/input"
	"github.com/OCAP2/flightcore/internal/match"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReasonDuration ends a run that reached Config.Duration.
const ReasonDuration = "duration"

// homeSpacing is the distance between neighbouring spawn points.
const homeSpacing = 2.5

// recallLimit bounds, in simulated seconds, the steps spent waiting for a
// recalled fleet to land.
const recallLimit = 120.0

var (
	// ErrUnknownVehicle is returned for ids the world does not own.
	ErrUnknownVehicle = errors.New("unknown vehicle")
	// ErrNotFlying is returned when a return flight is requested for a
	// vehicle that is not Flying.
	ErrNotFlying = errors.New("vehicle is not flying")
)

// Publisher receives telemetry. *dispatcher.Dispatcher satisfies it.
type Publisher interface {
	Publish(command string, payload any) error
}

// Dependencies holds optional collaborators.
type Dependencies struct {
	Publisher Publisher
	Logger    *slog.Logger
	Meter     metric.Meter
}

// Settings bundles the parameter sets the world is built from.
type Settings struct {
	Sim     Config
	Vehicle flight.Params
	Pilot   autopilot.Config
	Match   match.Config
}

// Unit is one vehicle with its pilot, if any.
type Unit struct {
	Vehicle  *flight.Vehicle
	Pilot    *autopilot.Pilot
	Health   *match.Health
	Callsign string
}

// World owns the fleet and the match. Step and Run must be called from one
// goroutine; Tick may be read from anywhere.
type World struct {
	settings  Settings
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics

	units    []*Unit
	field    *match.Field
	score    *match.Scoreboard
	clock    *match.Clock
	referee  *match.Referee
	assigner *match.Assigner

	mission core.Mission
	tick    atomic.Uint64
	elapsed float64
	started bool
	result  *core.MatchResult
}

// New builds a world and spawns Sim.FleetSize vehicles in a row along X.
func New(s Settings, deps Dependencies) (*World, error) {
	if err := s.Sim.Validate(); err != nil {
		return nil, err
	}
	if err := s.Vehicle.Validate(); err != nil {
		return nil, err
	}
	if err := s.Pilot.Validate(); err != nil {
		return nil, err
	}
	if err := s.Match.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}

	w := &World{
		settings:  s,
		publisher: deps.Publisher,
		logger:    logger,
		metrics:   m,
		field:     match.NewField(s.Match),
		score:     match.NewScoreboard(s.Match.PointsPerCapture),
		clock:     match.NewClock(s.Match.Duration),
	}
	w.referee = match.NewReferee(w.clock)
	w.assigner = match.NewAssigner(w.field, w.score, logger)
	w.mission = core.Mission{
		Name:      s.Sim.MissionName,
		FixedRate: s.Sim.FixedRate,
		FleetSize: s.Sim.FleetSize,
		FleetLoop: s.Pilot.FleetLoop,
		Seed:      int64(s.Match.Seed),
		Parameters: map[string]any{
			"vehicle": s.Vehicle,
			"pilot":   s.Pilot,
			"match":   s.Match,
		},
	}

	n := s.Sim.FleetSize
	for i := 0; i < n; i++ {
		x := (float64(i) - float64(n-1)/2) * homeSpacing
		callsign := fmt.Sprintf("drone-%02d", i+1)
		if _, err := w.AddVehicle(mgl64.Vec3{x, 0, 0}, 0, callsign, nil); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// AddVehicle spawns a vehicle. A nil source hands it to the autopilot when
// enabled; otherwise src flies it.
func (w *World) AddVehicle(spawn mgl64.Vec3, yaw float64, callsign string, src input.Source) (*Unit, error) {
	id := uint16(len(w.units) + 1)
	logger := w.logger.With("vehicle", id)

	v, err := flight.New(id, w.settings.Vehicle, spawn, yaw, flight.Dependencies{Source: src, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("spawning %s: %w", callsign, err)
	}
	u := &Unit{Vehicle: v, Health: &match.Health{}, Callsign: callsign}

	if src == nil && w.settings.Sim.Autopilot {
		p, err := autopilot.New(w.settings.Pilot, autopilot.Dependencies{
			Vehicle: v,
			Health:  u.Health,
			Match:   w.referee,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("pilot for %s: %w", callsign, err)
		}
		v.SetSource(p)
		w.assigner.Track(p)
		p.SetNotifier(&arrivals{world: w, unit: u, next: w.assigner})
		u.Pilot = p
	}

	v.OnStateChanged(func(c core.StateChange) {
		w.publish(core.CmdStateChanged, c)
	})
	if delay := w.settings.Sim.AutoStartDelay; delay >= 0 {
		v.After(delay, func() { v.PowerOn() })
	}

	w.units = append(w.units, u)
	w.score.Register(id, callsign)
	w.referee.Track(u.Health)

	if w.started {
		w.publishVehicle(u)
	}
	return u, nil
}

// Units returns the fleet in id order.
func (w *World) Units() []*Unit { return w.units }

// Unit looks up a vehicle by id.
func (w *World) Unit(id uint16) (*Unit, error) {
	if id == 0 || int(id) > len(w.units) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
	}
	return w.units[id-1], nil
}

// Field returns the pickup field.
func (w *World) Field() *match.Field { return w.field }

// Scoreboard returns the match tally.
func (w *World) Scoreboard() *match.Scoreboard { return w.score }

// Mission returns the mission record of this run.
func (w *World) Mission() core.Mission { return w.mission }

// Tick returns the number of fixed steps taken.
func (w *World) Tick() uint { return uint(w.tick.Load()) }

// Elapsed returns the simulated time.
func (w *World) Elapsed() time.Duration {
	return time.Duration(w.elapsed * float64(time.Second))
}

// Reset puts a vehicle back on its spawn point and restarts its plan.
func (w *World) Reset(id uint16) error {
	u, err := w.Unit(id)
	if err != nil {
		return err
	}
	u.Vehicle.Reset()
	if u.Pilot != nil {
		u.Vehicle.SetSource(u.Pilot)
		u.Pilot.Reinitialize()
		w.assigner.Track(u.Pilot)
		u.Pilot.SetNotifier(&arrivals{world: w, unit: u, next: w.assigner})
	}
	return nil
}

// ReturnHome flies a vehicle back to its spawn point and lands it. Its
// pilot stops taking targets until the vehicle is Reset.
func (w *World) ReturnHome(id uint16) error {
	u, err := w.Unit(id)
	if err != nil {
		return err
	}
	if !u.Vehicle.ReturnHome() {
		return fmt.Errorf("%w: vehicle %d is %s", ErrNotFlying, id, u.Vehicle.State())
	}
	if u.Pilot != nil {
		u.Vehicle.SetSource(nil)
		w.assigner.Untrack(u.Pilot)
		u.Pilot.Reinitialize()
	}
	return nil
}

// Start records the mission and every vehicle. Step calls it on first use.
func (w *World) Start() {
	if w.started {
		return
	}
	w.started = true
	w.mission.StartTime = time.Now()
	w.publish(core.CmdStartMission, w.mission)
	for _, u := range w.units {
		w.publishVehicle(u)
	}
	w.logger.Info("mission started", "mission", w.mission.Name, "vehicles", len(w.units), "pickups", len(w.field.Pickups()), "seed", w.settings.Match.Seed)
}

// Step advances the world by one fixed step.
func (w *World) Step() {
	w.Start()
	begin := time.Now()
	dt := w.settings.Sim.Step()
	w.tick.Add(1)

	for _, u := range w.units {
		u.Vehicle.FixedUpdate(dt)
	}
	for _, u := range w.units {
		u.Vehicle.Body().Step(dt)
	}
	for _, u := range w.units {
		w.detectPickup(u)
	}
	for _, u := range w.units {
		u.Vehicle.Update(dt)
	}
	w.clock.Advance(dt)
	w.elapsed += dt

	now := time.Now()
	for _, u := range w.units {
		w.publish(core.CmdVehicleState, w.snapshot(u, now))
	}

	ctx := context.Background()
	w.metrics.ticks.Add(ctx, 1)
	w.metrics.duration.Record(ctx, time.Since(begin).Seconds())
}

func (w *World) detectPickup(u *Unit) {
	p := u.Pilot
	if p == nil || p.Stage() != core.StageMoveToTarget || u.Vehicle.State() != core.StateFlying {
		return
	}
	if pickup, ok := w.field.Inside(u.Vehicle.Body().Position); ok {
		p.EnterPickupTrigger(pickup.ID)
	}
}

func (w *World) snapshot(u *Unit, now time.Time) core.VehicleState {
	s := u.Vehicle.Snapshot()
	s.Time = now
	if u.Pilot != nil {
		s.Stage = u.Pilot.Stage()
	}
	return s
}

// Done reports whether the run is over and why.
func (w *World) Done() (string, bool) {
	if reason := w.referee.Reason(); reason != "" {
		return reason, true
	}
	if w.Elapsed() >= w.settings.Sim.Duration {
		return ReasonDuration, true
	}
	return "", false
}

// Finish closes the match with reason and records the result. Later calls
// return the first result.
func (w *World) Finish(reason string) core.MatchResult {
	if w.result != nil {
		return *w.result
	}
	res := w.score.Result(w.Tick(), w.Elapsed(), reason)
	w.result = &res
	w.publish(core.CmdMatchResult, res)
	w.publish(core.CmdEndMission, w.mission)
	w.logger.Info("mission ended", "reason", reason, "winner", res.Winner, "ticks", res.Tick, "elapsed", res.Elapsed)
	return res
}

// Run steps the world until the match or the run duration ends, or ctx is
// cancelled. With Realtime set, steps are paced to the wall clock. With
// ReturnHome set, the fleet is recalled and landed before the result is
// recorded.
func (w *World) Run(ctx context.Context) core.MatchResult {
	w.Start()

	var pace <-chan time.Time
	if w.settings.Sim.Realtime {
		ticker := time.NewTicker(w.settings.Sim.Interval())
		defer ticker.Stop()
		pace = ticker.C
	}

	for {
		if reason, done := w.Done(); done {
			if w.settings.Sim.ReturnHome {
				w.recall(ctx, pace)
			}
			return w.Finish(reason)
		}
		if !w.next(ctx, pace) {
			return w.Finish(match.ReasonStopped)
		}
		w.Step()
	}
}

// next waits for the slot of the next step. It reports false once ctx is
// done.
func (w *World) next(ctx context.Context, pace <-chan time.Time) bool {
	if pace == nil {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-pace:
		return true
	}
}

// recall sends every Flying vehicle home and steps until the fleet has
// landed or recallLimit has passed.
func (w *World) recall(ctx context.Context, pace <-chan time.Time) {
	recalled := 0
	for _, u := range w.units {
		if w.ReturnHome(u.Vehicle.ID()) == nil {
			recalled++
		}
	}
	if recalled == 0 {
		return
	}
	w.logger.Info("recalling fleet", "vehicles", recalled)

	limit := w.elapsed + recallLimit
	for w.returning() && w.elapsed < limit && w.next(ctx, pace) {
		w.Step()
	}
	if w.returning() {
		w.logger.Warn("fleet not landed after recall", "limit", recallLimit)
	}
}

// returning reports whether any vehicle is still on a scripted return.
func (w *World) returning() bool {
	for _, u := range w.units {
		switch u.Vehicle.State() {
		case core.StateReturnHome, core.StateAutoLanding:
			return true
		}
	}
	return false
}

func (w *World) publishVehicle(u *Unit) {
	home := u.Vehicle.Home()
	w.publish(core.CmdNewVehicle, core.Vehicle{
		ID:        u.Vehicle.ID(),
		Callsign:  u.Callsign,
		JoinTime:  time.Now(),
		Home:      core.Position3D{X: home.X(), Y: home.Y(), Z: home.Z()},
		HomeYaw:   u.Vehicle.HomeYaw(),
		Autopilot: u.Pilot != nil,
	})
}

func (w *World) publish(command string, payload any) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(command, payload); err != nil {
		w.metrics.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
		w.logger.Debug("telemetry dropped", "command", command, "error", err)
	}
}

// arrivals records pilot notifications before handing them on.
type arrivals struct {
	world *World
	unit  *Unit
	next  autopilot.Notifier
}

func (a *arrivals) Collected(p *autopilot.Pilot, pickupID uint) {
	a.record(core.ArrivalCollected, pickupID)
	a.next.Collected(p, pickupID)
}

func (a *arrivals) Scored(p *autopilot.Pilot, pickupID uint) {
	a.record(core.ArrivalScored, pickupID)
	a.next.Scored(p, pickupID)
}

func (a *arrivals) record(kind core.ArrivalKind, pickupID uint) {
	pos := a.unit.Vehicle.Body().Position
	a.world.publish(core.CmdArrival, core.ArrivalEvent{
		VehicleID: a.unit.Vehicle.ID(),
		Tick:      a.world.Tick(),
		Kind:      kind,
		PickupID:  pickupID,
		Position:  core.Position3D{X: pos.X(), Y: pos.Y(), Z: pos.Z()},
	})
}
