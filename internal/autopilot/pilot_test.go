package autopilot

import (
	"math"
	"testing"

	"github.com/OCAP2/flightcore/internal/input"
	"github.com/OCAP2/flightcore/internal/physics"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 0.02

type fakeAirframe struct {
	state core.State
	body  *physics.Body
}

func (f *fakeAirframe) ID() uint16          { return 7 }
func (f *fakeAirframe) State() core.State   { return f.state }
func (f *fakeAirframe) Body() *physics.Body { return f.body }

type flag bool

func (f *flag) Destroyed() bool { return bool(*f) }
func (f *flag) Ended() bool     { return bool(*f) }

type recordingNotifier struct {
	collected []uint
	scored    []uint
	next      *mgl64.Vec3
}

func (n *recordingNotifier) Collected(_ *Pilot, id uint) {
	n.collected = append(n.collected, id)
}

func (n *recordingNotifier) Scored(p *Pilot, id uint) {
	n.scored = append(n.scored, id)
	if n.next != nil {
		p.SetTarget(*n.next)
	}
}

func newFakePilot(t *testing.T, cfg Config, pos mgl64.Vec3) (*Pilot, *fakeAirframe) {
	t.Helper()
	body, err := physics.NewBody(1, pos, 0)
	require.NoError(t, err)
	frame := &fakeAirframe{state: core.StateFlying, body: body}
	p, err := New(cfg, Dependencies{Vehicle: frame})
	require.NoError(t, err)
	return p, frame
}

// cruising returns a pilot whose climb and pause are already done.
func cruising(t *testing.T, cfg Config, pos mgl64.Vec3) (*Pilot, *fakeAirframe) {
	t.Helper()
	p, frame := newFakePilot(t, cfg, pos)
	frame.body.Position = mgl64.Vec3{pos.X(), cfg.HoverHeight, pos.Z()}
	var ch input.Channel
	for i := 0; i < 1000 && p.Stage() != core.StageMoveToTarget; i++ {
		p.Drive(dt, &ch)
	}
	require.Equal(t, core.StageMoveToTarget, p.Stage())
	return p, frame
}

func drive(p *Pilot) input.Axes {
	var ch input.Channel
	p.Drive(dt, &ch)
	return ch.Read()
}

func TestNew_Validation(t *testing.T) {
	_, err := New(DefaultConfig(), Dependencies{})
	assert.ErrorIs(t, err, ErrNoVehicle)

	cfg := DefaultConfig()
	cfg.Tolerance = -1
	body, _ := physics.NewBody(1, mgl64.Vec3{}, 0)
	_, err = New(cfg, Dependencies{Vehicle: &fakeAirframe{body: body}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.HoverHeight = 0
	_, err = New(cfg, Dependencies{Vehicle: &fakeAirframe{body: body}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHoverReached_Boundary(t *testing.T) {
	tol := 0.1
	assert.True(t, HoverReached(tol, tol))
	assert.True(t, HoverReached(-tol, tol))
	assert.False(t, HoverReached(tol+1e-9, tol))
	assert.False(t, HoverReached(-tol-1e-9, tol))
}

func TestArrived_Boundary(t *testing.T) {
	assert.True(t, Arrived(0.25, 0.25))
	assert.False(t, Arrived(0.25+1e-9, 0.25))
	assert.True(t, Arrived(0, 0))
}

func TestDrive_PoweredGate(t *testing.T) {
	p, frame := newFakePilot(t, DefaultConfig(), mgl64.Vec3{})
	frame.state = core.StateOff

	var ch input.Channel
	ch.Write(input.Axes{Pitch: 0.3})
	p.Drive(dt, &ch)
	assert.Equal(t, input.Axes{Pitch: 0.3}, ch.Read(), "an unpowered vehicle is left alone")
	assert.Equal(t, core.StageOff, p.Stage())

	frame.state = core.StateStartingEngine
	p.Drive(dt, &ch)
	assert.Equal(t, core.StageClimbToHover, p.Stage())
	assert.Greater(t, ch.Read().Throttle, 0.0)
}

func TestDrive_ClimbLaw(t *testing.T) {
	cfg := DefaultConfig()
	p, frame := newFakePilot(t, cfg, mgl64.Vec3{})

	axes := drive(p)
	assert.InDelta(t, cfg.BaseThrottle+cfg.ClimbGain*cfg.HoverHeight, axes.Throttle, 1e-12)
	assert.Equal(t, 0.0, axes.Pitch)
	assert.Equal(t, 0.0, axes.Roll)
	assert.Equal(t, 0.0, axes.Yaw)
	assert.False(t, p.HoveringComplete())

	frame.body.Position = mgl64.Vec3{0, -100, 0}
	assert.Equal(t, cfg.MaxThrottle, drive(p).Throttle)

	frame.body.Position = mgl64.Vec3{0, 100, 0}
	assert.Equal(t, 0.0, drive(p).Throttle)
	assert.False(t, p.HoveringComplete())
}

func TestDrive_HoverCompletesAtTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HoverHeight = 1.5
	cfg.Tolerance = 0.25

	p, frame := newFakePilot(t, cfg, mgl64.Vec3{0, 1.25 - 1e-9, 0})
	drive(p)
	assert.False(t, p.HoveringComplete(), "error just above tolerance")

	frame.body.Position = mgl64.Vec3{0, 1.25, 0}
	drive(p)
	assert.True(t, p.HoveringComplete(), "error equal to tolerance")
	assert.Equal(t, core.StageHoverPause, p.Stage())
}

func TestDrive_HoverPauseHoldsAltitude(t *testing.T) {
	cfg := DefaultConfig()
	p, frame := newFakePilot(t, cfg, mgl64.Vec3{0, cfg.HoverHeight, 0})
	p.SetTarget(mgl64.Vec3{10, 1.5, 10})

	drive(p)
	require.Equal(t, core.StageHoverPause, p.Stage())

	for i := 0; i < 99; i++ {
		axes := drive(p)
		require.Equal(t, core.StageHoverPause, p.Stage(), "step %d", i)
		assert.Equal(t, input.Axes{}, axes, "level at hover height means zero hold throttle")
	}
	drive(p)
	assert.Equal(t, core.StageMoveToTarget, p.Stage())

	frame.body.Position = mgl64.Vec3{0, 1.0, 0}
	frame.body.Velocity = mgl64.Vec3{0, -0.5, 0}
	axes := drive(p)
	assert.InDelta(t, cfg.HoldGain*0.5+cfg.HoldDamping*0.5, axes.Throttle, 1e-12)

	frame.body.Position = mgl64.Vec3{0, 10, 0}
	frame.body.Velocity = mgl64.Vec3{}
	assert.Equal(t, -1.0, drive(p).Throttle, "hold output is clamped")
}

func TestCruise_PitchSaturatesStraightAhead(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PitchSensitivity = 2
	cfg.MaxPitch = 1
	cfg.TargetRadius = 0.25
	p, _ := cruising(t, cfg, mgl64.Vec3{})
	p.SetTarget(mgl64.Vec3{0, 1.5, 5})

	axes := drive(p)
	assert.Equal(t, 1.0, axes.Pitch)
	assert.InDelta(t, 0, axes.Roll, 1e-12)
	assert.InDelta(t, 0, axes.Yaw, 1e-12)
}

func TestCruise_TurnTrimsLateralAxes(t *testing.T) {
	cfg := DefaultConfig()
	p, _ := cruising(t, cfg, mgl64.Vec3{})
	p.SetTarget(mgl64.Vec3{5, 1.5, 0})

	axes := drive(p)
	assert.InDelta(t, 1, axes.Yaw, 1e-12, "90 degrees to the right is full right yaw")
	assert.InDelta(t, 1-cfg.TurnTrimRate*dt, axes.Roll, 1e-9)
	assert.InDelta(t, 0, axes.Pitch, 1e-9)

	p.SetTarget(mgl64.Vec3{-5, 1.5, 5})
	axes = drive(p)
	assert.InDelta(t, -1, axes.Yaw, 1e-12, "45 degrees to the left")
	assert.Less(t, axes.Roll, 0.0)
	assert.Greater(t, axes.Pitch, 0.0)
}

func TestTurnTrim_NeverIncreasesMagnitude(t *testing.T) {
	cfg := DefaultConfig()
	body, err := physics.NewBody(1, mgl64.Vec3{}, 0)
	require.NoError(t, err)

	for heading := -180.0; heading < 180; heading += 7.5 {
		body.SetYaw(heading)
		for bearing := 0.0; bearing < 360; bearing += 11 {
			r := mgl64.DegToRad(bearing)
			planar := mgl64.Vec3{math.Sin(r), 0, math.Cos(r)}
			pitch, roll, yaw := Steer(body, planar, cfg)
			tp, tr := TurnTrim(pitch, roll, yaw, cfg.TurnTrimRate, dt)
			if math.Abs(yaw) > 0.01 {
				assert.LessOrEqual(t, math.Abs(tp), math.Abs(pitch))
				assert.LessOrEqual(t, math.Abs(tr), math.Abs(roll))
			} else {
				assert.Equal(t, pitch, tp)
				assert.Equal(t, roll, tr)
			}
		}
	}
}

func TestSignedAngle(t *testing.T) {
	up := physics.Up
	fwd := physics.Forward
	assert.InDelta(t, 90, SignedAngle(fwd, mgl64.Vec3{1, 0, 0}, up), 1e-9)
	assert.InDelta(t, -90, SignedAngle(fwd, mgl64.Vec3{-1, 0, 0}, up), 1e-9)
	assert.InDelta(t, 0, SignedAngle(fwd, fwd, up), 1e-9)
	assert.InDelta(t, 180, math.Abs(SignedAngle(fwd, mgl64.Vec3{0, 0, -1}, up)), 1e-9)
}

func TestCruise_ArrivalRadiusBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetRadius = 0.25

	p, _ := cruising(t, cfg, mgl64.Vec3{})
	p.SetTarget(mgl64.Vec3{0, 3, 0.25})
	axes := drive(p)
	assert.Equal(t, 0.0, axes.Pitch, "distance equal to radius arrives")
	assert.Equal(t, 0.0, axes.Roll)
	assert.Equal(t, 0.0, axes.Yaw)

	p.SetTarget(mgl64.Vec3{0, 3, 0.25 + 1e-9})
	axes = drive(p)
	assert.Greater(t, axes.Pitch, 0.0, "just outside the radius keeps steering")
}

func TestCruise_NoTargetHoldsPosition(t *testing.T) {
	p, _ := cruising(t, DefaultConfig(), mgl64.Vec3{})
	p.ClearTarget()
	axes := drive(p)
	assert.Equal(t, 0.0, axes.Pitch)
	assert.Equal(t, 0.0, axes.Roll)
	assert.Equal(t, 0.0, axes.Yaw)
}

func TestCruise_NearZeroDirectionIsGuarded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetRadius = 0
	p, _ := cruising(t, cfg, mgl64.Vec3{})
	p.SetTarget(mgl64.Vec3{1e-3, 1.5, 0})

	axes := drive(p)
	assert.False(t, math.IsNaN(axes.Pitch) || math.IsNaN(axes.Roll) || math.IsNaN(axes.Yaw))
	assert.Equal(t, input.Axes{Throttle: axes.Throttle}, axes)
}

func TestPickupAndDelivery_FleetLoop(t *testing.T) {
	cfg := DefaultConfig()
	p, frame := cruising(t, cfg, mgl64.Vec3{})
	next := mgl64.Vec3{-4, 1.5, 2}
	n := &recordingNotifier{next: &next}
	p.SetNotifier(n)

	p.SetTarget(mgl64.Vec3{3, 1.5, 3})
	frame.body.Position = mgl64.Vec3{3, 1.5, 3}
	require.True(t, p.EnterPickupTrigger(4))
	assert.Equal(t, core.StageBackHome, p.Stage())
	assert.Equal(t, []uint{4}, n.collected)
	_, hasTarget := p.Target()
	assert.False(t, hasTarget)
	assert.False(t, p.EnterPickupTrigger(5), "already carrying")

	axes := drive(p)
	assert.NotZero(t, axes.Pitch+axes.Roll, "steering home")

	frame.body.Position = mgl64.Vec3{0.3, 1.5, 0.3}
	drive(p)
	assert.Equal(t, []uint{4}, n.scored)
	assert.Equal(t, core.StageMoveToTarget, p.Stage())
	target, ok := p.Target()
	require.True(t, ok)
	assert.Equal(t, next, target)
}

func TestPickupAndDelivery_SingleTargetEndsInSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FleetLoop = false
	p, frame := cruising(t, cfg, mgl64.Vec3{})
	n := &recordingNotifier{}
	p.SetNotifier(n)

	p.SetTarget(mgl64.Vec3{2, 1.5, 0})
	require.True(t, p.EnterPickupTrigger(1))
	frame.body.Position = mgl64.Vec3{0.1, 1.5, 0}
	axes := drive(p)

	assert.Equal(t, core.StageSuccess, p.Stage())
	assert.Equal(t, input.Axes{}, axes)
	assert.Equal(t, []uint{1}, n.scored)

	frame.body.Position = mgl64.Vec3{0, 0.2, 0}
	assert.Equal(t, input.Axes{}, drive(p), "success zeroes every axis for good")
}

func TestDrive_GuardZeroesAxes(t *testing.T) {
	cfg := DefaultConfig()
	body, err := physics.NewBody(1, mgl64.Vec3{}, 0)
	require.NoError(t, err)
	frame := &fakeAirframe{state: core.StateFlying, body: body}
	var destroyed, ended flag
	p, err := New(cfg, Dependencies{Vehicle: frame, Health: &destroyed, Match: &ended})
	require.NoError(t, err)

	assert.Greater(t, drive(p).Throttle, 0.0)

	destroyed = true
	var ch input.Channel
	ch.Write(input.Axes{Throttle: 5, Pitch: 1})
	p.Drive(dt, &ch)
	assert.Equal(t, input.Axes{}, ch.Read())

	destroyed, ended = false, true
	ch.Write(input.Axes{Throttle: 5})
	p.Drive(dt, &ch)
	assert.Equal(t, input.Axes{}, ch.Read())
}

func TestReinitialize(t *testing.T) {
	p, _ := cruising(t, DefaultConfig(), mgl64.Vec3{})
	p.SetTarget(mgl64.Vec3{1, 1, 1})
	p.Reinitialize()

	assert.Equal(t, core.StageOff, p.Stage())
	assert.False(t, p.HoveringComplete())
	_, ok := p.Target()
	assert.False(t, ok)
}
