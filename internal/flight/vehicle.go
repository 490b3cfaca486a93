// Package flight implements the vehicle state machine and the force-based
// flight integrator of a quadcopter, plus the scripted return-home and
// auto-landing moves.
package flight

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/flightcore/internal/input"
	"github.com/OCAP2/flightcore/internal/physics"
	"github.com/OCAP2/flightcore/internal/tween"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

const gravity = physics.Gravity

// StateListener is notified synchronously after each transition.
// Listeners run on the simulation goroutine and must not block.
type StateListener func(core.StateChange)

// Dependencies holds the collaborators of a Vehicle.
type Dependencies struct {
	// Source writes the input channel each fixed step. It is chosen once
	// at construction: a human adapter or an autonomous pilot.
	Source input.Source
	Logger *slog.Logger
}

// Vehicle owns one physics body, its input channel and its operating state.
// All methods must be called from the simulation goroutine.
type Vehicle struct {
	id     uint16
	params Params
	body   *physics.Body
	input  input.Channel
	source input.Source
	logger *slog.Logger

	state    core.State
	tick     uint
	visualOn bool

	home    mgl64.Vec3
	homeYaw float64

	upForce    float64
	targetYaw  float64
	currentYaw float64
	yawVel     float64
	pitchTilt  float64
	pitchVel   float64
	rollTilt   float64
	rollVel    float64
	brakeVel   mgl64.Vec3

	landingDelay float64

	timers    []timer
	moves     *tween.Sequence
	rotation  *tween.Angle
	listeners []StateListener
}

type timer struct {
	remaining float64
	fn        func()
}

// New creates a vehicle at rest in Off at the given spawn pose.
func New(id uint16, params Params, spawn mgl64.Vec3, spawnYaw float64, deps Dependencies) (*Vehicle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body, err := physics.NewBody(params.Mass, spawn, spawnYaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := &Vehicle{
		id:           id,
		params:       params,
		body:         body,
		source:       deps.Source,
		logger:       logger.With("vehicle", id),
		home:         spawn,
		homeYaw:      spawnYaw,
		targetYaw:    spawnYaw,
		currentYaw:   spawnYaw,
		landingDelay: params.LandingDelay,
	}
	return v, nil
}

// ID returns the vehicle identifier.
func (v *Vehicle) ID() uint16 { return v.id }

// Params returns the vehicle parameters.
func (v *Vehicle) Params() Params { return v.params }

// State returns the current operating state.
func (v *Vehicle) State() core.State { return v.state }

// Body returns the physics body.
func (v *Vehicle) Body() *physics.Body { return v.body }

// Input returns a read-only view of the input channel.
func (v *Vehicle) Input() input.Reader { return &v.input }

// Home returns the spawn position.
func (v *Vehicle) Home() mgl64.Vec3 { return v.home }

// HomeYaw returns the spawn heading in degrees.
func (v *Vehicle) HomeYaw() float64 { return v.homeYaw }

// Tick returns the number of fixed steps run so far.
func (v *Vehicle) Tick() uint { return v.tick }

// UpForce returns the lift force computed in the last step.
func (v *Vehicle) UpForce() float64 { return v.upForce }

// VisualActive reports whether the secondary visual subsystem is on.
func (v *Vehicle) VisualActive() bool { return v.visualOn }

// SetSource replaces the input source. Used when the source needs the
// vehicle at construction time, as the autonomous pilot does.
func (v *Vehicle) SetSource(src input.Source) { v.source = src }

// OnStateChanged registers a transition listener.
func (v *Vehicle) OnStateChanged(fn StateListener) {
	v.listeners = append(v.listeners, fn)
}

// After runs fn once delay seconds of frame time have elapsed.
func (v *Vehicle) After(delay float64, fn func()) {
	v.timers = append(v.timers, timer{remaining: delay, fn: fn})
}

// ScriptedMoveInProgress reports whether a scripted move owns the body.
func (v *Vehicle) ScriptedMoveInProgress() bool {
	return v.moves.InProgress() || v.rotation != nil
}

// PowerOn starts the engine. It is accepted only in Off and reports
// whether it was.
func (v *Vehicle) PowerOn() bool {
	if v.state != core.StateOff {
		return false
	}
	v.body.UseGravity = true
	v.body.Kinematic = false
	v.setState(core.StateStartingEngine)
	v.After(v.params.EngineStartDelay, func() {
		if v.state == core.StateStartingEngine {
			v.setState(core.StateReadyToFly)
		}
	})
	return true
}

// Reset puts the vehicle back on its spawn point in Off, dropping timers,
// scripted moves and smoothing state.
func (v *Vehicle) Reset() {
	v.timers = nil
	v.moves = nil
	v.rotation = nil
	v.halt()
	v.body.Position = v.home
	v.body.SetYaw(v.homeYaw)
	v.body.UseGravity = false
	v.targetYaw, v.currentYaw = v.homeYaw, v.homeYaw
	v.landingDelay = v.params.LandingDelay
	v.input.Write(input.Axes{})
	v.visualOn = false
	v.setState(core.StateOff)
}

// FixedUpdate runs one fixed simulation step: the input source writes the
// channel, then the integrator applies forces for the current state. The
// physics body itself is advanced by the caller afterwards.
func (v *Vehicle) FixedUpdate(dt float64) {
	v.tick++
	if v.source != nil {
		v.source.Drive(dt, &v.input)
	}
	if v.state == core.StateOff || v.ScriptedMoveInProgress() {
		return
	}
	v.integrate(dt)
}

// Update runs the per-frame work: delayed calls and scripted moves.
func (v *Vehicle) Update(dt float64) {
	v.runTimers(dt)

	if r := v.rotation; r != nil {
		v.body.SetYaw(r.Advance(dt))
		if r.Done() {
			v.rotation = nil
			v.targetYaw, v.currentYaw, v.yawVel = r.To, r.To, 0
		}
	}
	if v.moves.InProgress() {
		v.moves.Advance(dt)
	}
}

func (v *Vehicle) runTimers(dt float64) {
	if len(v.timers) == 0 {
		return
	}
	var due []func()
	pending := v.timers[:0]
	for _, t := range v.timers {
		t.remaining -= dt
		if t.remaining <= 0 {
			due = append(due, t.fn)
			continue
		}
		pending = append(pending, t)
	}
	v.timers = pending
	for _, fn := range due {
		fn()
	}
}

func (v *Vehicle) setState(to core.State) {
	from := v.state
	if from == to {
		return
	}
	v.state = to
	v.logger.Debug("vehicle state changed", "from", from.String(), "to", to.String(), "tick", v.tick)

	change := core.StateChange{VehicleID: v.id, Tick: v.tick, From: from, To: to}
	for _, fn := range v.listeners {
		fn(change)
	}
}

// Snapshot captures the vehicle for telemetry. Stage is left for the
// caller to fill in.
func (v *Vehicle) Snapshot() core.VehicleState {
	p, vel := v.body.Position, v.body.Velocity
	return core.VehicleState{
		VehicleID: v.id,
		Tick:      v.tick,
		Position:  core.Position3D{X: p.X(), Y: p.Y(), Z: p.Z()},
		Velocity:  core.Position3D{X: vel.X(), Y: vel.Y(), Z: vel.Z()},
		Yaw:       v.body.Yaw(),
		PitchTilt: v.pitchTilt,
		RollTilt:  v.rollTilt,
		UpForce:   v.upForce,
		State:     v.state,
		Input:     v.input.Read().Core(),
		Scripted:  v.ScriptedMoveInProgress(),
	}
}
