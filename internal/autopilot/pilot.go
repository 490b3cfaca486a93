// Package autopilot flies a vehicle without human input: climb to hover
// height, pause, cruise to the assigned target, carry the pickup home and
// go out again.
package autopilot

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/OCAP2/flightcore/internal/input"
	"github.com/OCAP2/flightcore/internal/physics"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"go.einride.tech/pid"
)

// ErrNoVehicle is returned when a pilot is built without a vehicle.
var ErrNoVehicle = errors.New("autopilot requires a vehicle")

// Airframe is the view of the flown vehicle the pilot needs.
type Airframe interface {
	ID() uint16
	State() core.State
	Body() *physics.Body
}

// Health reports the combat status of the vehicle.
type Health interface {
	Destroyed() bool
}

// Match reports whether the surrounding match is over.
type Match interface {
	Ended() bool
}

// Notifier receives arrival notifications. Implementations may respond
// synchronously with SetTarget or ClearTarget.
type Notifier interface {
	Collected(p *Pilot, pickupID uint)
	Scored(p *Pilot, pickupID uint)
}

// Dependencies holds the collaborators of a Pilot. Only Vehicle is
// required.
type Dependencies struct {
	Vehicle  Airframe
	Health   Health
	Match    Match
	Notifier Notifier
	Logger   *slog.Logger
}

// Pilot is an input.Source that writes the channel of one vehicle.
type Pilot struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger

	stage            core.Stage
	home             mgl64.Vec3
	target           mgl64.Vec3
	hasTarget        bool
	hoveringComplete bool
	hoverTimer       float64
	carrying         uint

	climb pid.Controller
	hold  pid.Controller
}

var _ input.Source = (*Pilot)(nil)

// New creates a pilot in stage Off. The home point is the vehicle position
// at construction.
func New(cfg Config, deps Dependencies) (*Pilot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Vehicle == nil || deps.Vehicle.Body() == nil {
		return nil, ErrNoVehicle
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pilot{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("vehicle", deps.Vehicle.ID()),
		home:   deps.Vehicle.Body().Position,
	}
	p.resetControllers()
	return p, nil
}

func (p *Pilot) resetControllers() {
	p.climb = pid.Controller{Config: pid.ControllerConfig{ProportionalGain: p.cfg.ClimbGain}}
	p.hold = pid.Controller{Config: pid.ControllerConfig{ProportionalGain: p.cfg.HoldGain}}
}

// SetNotifier installs the arrival notifier.
func (p *Pilot) SetNotifier(n Notifier) { p.deps.Notifier = n }

// ID returns the id of the flown vehicle.
func (p *Pilot) ID() uint16 { return p.deps.Vehicle.ID() }

// Stage returns the current plan stage.
func (p *Pilot) Stage() core.Stage { return p.stage }

// HoveringComplete reports whether the initial climb has finished.
func (p *Pilot) HoveringComplete() bool { return p.hoveringComplete }

// Home returns the captured home position.
func (p *Pilot) Home() mgl64.Vec3 { return p.home }

// Position returns the current vehicle position.
func (p *Pilot) Position() mgl64.Vec3 { return p.deps.Vehicle.Body().Position }

// Target returns the destination, if any.
func (p *Pilot) Target() (mgl64.Vec3, bool) { return p.target, p.hasTarget }

// Carrying returns the pickup being brought home.
func (p *Pilot) Carrying() (uint, bool) {
	return p.carrying, p.stage == core.StageBackHome
}

// Finished reports whether the pilot takes no further targets. Pilots of
// destroyed vehicles, pilots in an ended match and pilots in Success are
// finished.
func (p *Pilot) Finished() bool {
	return p.stage == core.StageSuccess || p.guarded()
}

// SetTarget assigns the destination for MoveToTarget.
func (p *Pilot) SetTarget(pos mgl64.Vec3) {
	p.target, p.hasTarget = pos, true
}

// ClearTarget removes the destination; the pilot holds position.
func (p *Pilot) ClearTarget() {
	p.target, p.hasTarget = mgl64.Vec3{}, false
}

// Reinitialize puts the plan back to Off.
func (p *Pilot) Reinitialize() {
	p.setStage(core.StageOff)
	p.hoveringComplete = false
	p.hoverTimer = 0
	p.carrying = 0
	p.ClearTarget()
	p.resetControllers()
}

// EnterPickupTrigger is called when the vehicle enters a pickup trigger
// volume. It only has an effect in MoveToTarget.
func (p *Pilot) EnterPickupTrigger(pickupID uint) bool {
	if p.stage != core.StageMoveToTarget {
		return false
	}
	p.carrying = pickupID
	p.ClearTarget()
	p.setStage(core.StageBackHome)
	p.logger.Info("pickup collected", "pickup", pickupID)
	if n := p.deps.Notifier; n != nil {
		n.Collected(p, pickupID)
	}
	return true
}

// HoverReached reports whether an altitude error is within tolerance.
func HoverReached(err, tolerance float64) bool {
	return math.Abs(err) <= tolerance
}

// Arrived reports whether a planar distance is within the arrival radius.
func Arrived(distance, radius float64) bool {
	return distance <= radius
}

// Drive implements input.Source.
func (p *Pilot) Drive(dt float64, ch *input.Channel) {
	if !p.deps.Vehicle.State().Powered() || dt <= 0 {
		return
	}
	if p.guarded() {
		ch.Write(input.Axes{})
		return
	}
	if p.stage == core.StageSuccess {
		ch.Write(input.Axes{})
		return
	}
	if p.stage == core.StageOff {
		p.setStage(core.StageClimbToHover)
	}

	body := p.deps.Vehicle.Body()
	height := body.Position.Y()
	errHeight := p.cfg.HoverHeight - height

	if !p.hoveringComplete {
		throttle := p.climbThrottle(height, dt)
		if HoverReached(errHeight, p.cfg.Tolerance) {
			p.hoveringComplete = true
			p.hoverTimer = p.cfg.HoverPause
			p.setStage(core.StageHoverPause)
		}
		ch.Write(input.Axes{Throttle: throttle})
		return
	}

	throttle := p.holdThrottle(height, body.Velocity.Y(), dt)

	if p.stage == core.StageHoverPause {
		p.hoverTimer -= dt
		if p.hoverTimer <= 0 {
			p.setStage(core.StageMoveToTarget)
		}
		ch.Write(input.Axes{Throttle: throttle})
		return
	}

	pitch, roll, yaw := p.cruise(body, dt)
	if p.stage == core.StageSuccess {
		ch.Write(input.Axes{})
		return
	}
	ch.Write(input.Axes{Pitch: pitch, Roll: roll, Yaw: yaw, Throttle: throttle})
}

func (p *Pilot) guarded() bool {
	if h := p.deps.Health; h != nil && h.Destroyed() {
		return true
	}
	if m := p.deps.Match; m != nil && m.Ended() {
		return true
	}
	return false
}

func sampling(dt float64) time.Duration {
	return time.Duration(dt * float64(time.Second))
}

// climbThrottle is the proportional climb law around the base throttle.
func (p *Pilot) climbThrottle(height, dt float64) float64 {
	p.climb.Update(pid.ControllerInput{
		ReferenceSignal:  p.cfg.HoverHeight,
		ActualSignal:     height,
		SamplingInterval: sampling(dt),
	})
	return mgl64.Clamp(p.cfg.BaseThrottle+p.climb.State.ControlSignal, 0, p.cfg.MaxThrottle)
}

// holdThrottle keeps the hover height once the climb is over, damped by
// the vertical speed.
func (p *Pilot) holdThrottle(height, vy, dt float64) float64 {
	p.hold.Update(pid.ControllerInput{
		ReferenceSignal:  p.cfg.HoverHeight,
		ActualSignal:     height,
		SamplingInterval: sampling(dt),
	})
	return mgl64.Clamp(p.hold.State.ControlSignal-p.cfg.HoldDamping*vy, -1, 1)
}

func (p *Pilot) setStage(s core.Stage) {
	if p.stage == s {
		return
	}
	p.logger.Debug("pilot stage changed", "from", p.stage.String(), "to", s.String())
	p.stage = s
}
