package flight

import (
	"math"

	"github.com/OCAP2/flightcore/internal/input"
	"github.com/OCAP2/flightcore/internal/physics"
	"github.com/OCAP2/flightcore/internal/smooth"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// priorityDeadzone is the magnitude above which throttle and yaw
	// compete for the same step.
	priorityDeadzone = 0.01
	yawSmoothTime    = 0.25
	// speedClampRate scales dt into the interpolation factor of the
	// velocity clamp.
	speedClampRate = 5
)

// Prioritize applies the throttle/yaw exclusion rule: when both exceed the
// deadzone, only the larger magnitude survives. Equal magnitudes both pass.
func Prioritize(throttle, yaw float64) (float64, float64) {
	at, ay := math.Abs(throttle), math.Abs(yaw)
	if at <= priorityDeadzone || ay <= priorityDeadzone {
		return throttle, yaw
	}
	switch {
	case at > ay:
		return throttle, 0
	case ay > at:
		return 0, yaw
	default:
		return throttle, yaw
	}
}

func (v *Vehicle) integrate(dt float64) {
	axes := v.input.Read()

	if v.state == core.StatePrepareAutoLanding && axes.Throttle <= 0 {
		v.prepareLanding(axes, dt)
		return
	}

	if (v.state == core.StateReadyToFly || v.state == core.StatePrepareAutoLanding) && axes.Throttle > 0 {
		v.landingDelay = v.params.LandingDelay
		v.body.UseGravity = true
		v.body.Kinematic = false
		v.visualOn = true
		v.setState(core.StateFlying)
	}

	if v.state != core.StateFlying {
		return
	}

	if v.shouldPrepareLanding(axes) {
		v.setState(core.StatePrepareAutoLanding)
		v.prepareLanding(axes, dt)
		return
	}

	v.clampSpeed(axes, dt)
	throttle, yaw := Prioritize(axes.Throttle, axes.Yaw)
	v.throttleForce(throttle)
	v.yawForce(yaw, dt)
	v.rollForce(axes.Roll, dt)
	v.pitchForce(axes.Pitch, dt)
	v.applyForces()
}

// prepareLanding holds the vehicle with neutral forces while the landing
// countdown runs on negative throttle. Centred throttle pauses it.
func (v *Vehicle) prepareLanding(axes input.Axes, dt float64) {
	if axes.Throttle < 0 {
		v.landingDelay -= dt
		if v.landingDelay <= 0 {
			v.landingDelay = v.params.LandingDelay
			v.activateAutoLanding()
			return
		}
	}

	v.clampSpeed(axes, dt)
	v.throttleForce(0)
	v.yawForce(0, dt)
	v.rollForce(0, dt)
	v.pitchForce(0, dt)
	v.applyForces()
}

func (v *Vehicle) shouldPrepareLanding(axes input.Axes) bool {
	return v.params.ProximityLanding &&
		v.body.Height() < v.params.SafeHeight &&
		axes.Throttle <= 0 &&
		v.body.Velocity.Y() < 0
}

// clampSpeed pulls the speed toward the maximum and, with centred sticks,
// brakes toward rest. Vertical motion is inferred from the lift force of
// the previous step.
func (v *Vehicle) clampSpeed(axes input.Axes, dt float64) {
	vel := v.body.Velocity
	limit := smooth.Lerp(vel.Len(), v.params.MaxSpeed, dt*speedClampRate)
	vel = smooth.ClampMagnitude(vel, limit)

	if axes.IsIdle() {
		vel = smooth.DampVec(vel, mgl64.Vec3{}, &v.brakeVel, v.brakeTime(), dt)
	}
	v.body.Velocity = vel
}

func (v *Vehicle) brakeTime() float64 {
	if v.params.Mode == Attitude {
		return v.params.SlowDownAttitude
	}
	hover := v.params.hoverForce()
	if v.upForce > hover+v.params.HoverBand || v.upForce < hover-v.params.HoverBand {
		return v.params.SlowDownVertical
	}
	return v.params.SlowDownPositioning
}

func (v *Vehicle) throttleForce(throttle float64) {
	v.upForce = v.params.hoverForce()
	switch {
	case throttle > 0:
		v.upForce += throttle * v.params.UpwardForce
	case throttle < 0:
		v.upForce += throttle * v.params.DownwardForce
	}
}

func (v *Vehicle) yawForce(yaw, dt float64) {
	v.targetYaw += yaw * v.params.MaxYawSpeed
	v.currentYaw = smooth.Damp(v.currentYaw, v.targetYaw, &v.yawVel, yawSmoothTime, dt)
}

func (v *Vehicle) rollForce(roll, dt float64) {
	v.body.AddRelativeForce(physics.Right.Mul(roll * v.params.SidewardForce))
	v.rollTilt = smooth.Damp(v.rollTilt, v.params.MaxRollTilt*roll, &v.rollVel, v.params.TiltSmoothTime, dt)
}

func (v *Vehicle) pitchForce(pitch, dt float64) {
	v.body.AddRelativeForce(physics.Forward.Mul(pitch * v.params.ForwardForce))
	v.pitchTilt = smooth.Damp(v.pitchTilt, v.params.MaxPitchTilt*pitch, &v.pitchVel, v.params.TiltSmoothTime, dt)
}

func (v *Vehicle) applyForces() {
	v.body.AddRelativeForce(physics.Up.Mul(v.upForce))
	v.body.SetYaw(v.currentYaw)
	v.body.AngularVelocity = mgl64.Vec3{}
	v.body.SetTilt(v.pitchTilt, v.rollTilt)
}

// halt clears smoothing and motion and hands the body to scripted moves.
func (v *Vehicle) halt() {
	v.upForce = 0
	v.yawVel, v.pitchVel, v.rollVel = 0, 0, 0
	v.pitchTilt, v.rollTilt = 0, 0
	v.brakeVel = mgl64.Vec3{}
	v.body.Stop()
	v.body.SetTilt(0, 0)
	v.body.UseGravity = false
	v.body.Kinematic = true
}
