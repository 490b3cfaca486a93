package autopilot

import (
	"math"

	"github.com/OCAP2/flightcore/internal/physics"
	"github.com/OCAP2/flightcore/internal/smooth"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// minPlanarSqr guards normalisation of near-zero direction vectors.
	minPlanarSqr = 1e-4
	// turnTrimThreshold is the yaw command above which pitch and roll
	// are trimmed.
	turnTrimThreshold = 0.01
	// fullYawAngle is the heading error in degrees that commands full yaw.
	fullYawAngle = 45
)

// Planar drops the vertical component of v.
func Planar(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X(), 0, v.Z()}
}

// SignedAngle returns the angle in degrees from "from" to "to" around axis.
// Positive is a right turn when axis points up.
func SignedAngle(from, to, axis mgl64.Vec3) float64 {
	return mgl64.RadToDeg(math.Atan2(axis.Dot(from.Cross(to)), from.Dot(to)))
}

// Steer derives pitch, roll and yaw commands toward a planar direction for
// a body with the given orientation. planar must not be near zero.
func Steer(body *physics.Body, planar mgl64.Vec3, cfg Config) (pitch, roll, yaw float64) {
	dir := planar.Normalize()
	local := body.ToLocal(dir)

	pitch = mgl64.Clamp(local.Z()*cfg.PitchSensitivity, -cfg.MaxPitch, cfg.MaxPitch)
	roll = mgl64.Clamp(local.X()*cfg.RollSensitivity, -cfg.MaxRoll, cfg.MaxRoll)

	angle := SignedAngle(body.Forward(), dir, physics.Up)
	yaw = mgl64.Clamp(angle/fullYawAngle, -1, 1) * cfg.MaxYaw
	return pitch, roll, yaw
}

// TurnTrim pulls pitch and roll toward zero while turning. The result
// never exceeds the input magnitude.
func TurnTrim(pitch, roll, yaw, rate, dt float64) (float64, float64) {
	if math.Abs(yaw) <= turnTrimThreshold {
		return pitch, roll
	}
	step := rate * dt
	return smooth.MoveTowards(pitch, 0, step), smooth.MoveTowards(roll, 0, step)
}

// cruise steers toward the stage destination and handles home arrival.
func (p *Pilot) cruise(body *physics.Body, dt float64) (pitch, roll, yaw float64) {
	var dest mgl64.Vec3
	var radius float64
	switch p.stage {
	case core.StageMoveToTarget:
		if !p.hasTarget {
			return 0, 0, 0
		}
		dest, radius = p.target, p.cfg.TargetRadius
	case core.StageBackHome:
		dest, radius = p.home, p.cfg.HomeRadius
	default:
		return 0, 0, 0
	}

	planar := Planar(dest.Sub(body.Position))
	if Arrived(planar.Len(), radius) {
		if p.stage == core.StageBackHome {
			p.arriveHome()
		}
		return 0, 0, 0
	}
	if planar.LenSqr() < minPlanarSqr {
		return 0, 0, 0
	}

	pitch, roll, yaw = Steer(body, planar, p.cfg)
	pitch, roll = TurnTrim(pitch, roll, yaw, p.cfg.TurnTrimRate, dt)
	return pitch, roll, yaw
}

func (p *Pilot) arriveHome() {
	delivered := p.carrying
	p.carrying = 0
	p.ClearTarget()
	if p.cfg.FleetLoop {
		p.setStage(core.StageMoveToTarget)
	} else {
		p.setStage(core.StageSuccess)
	}
	p.logger.Info("delivered home", "pickup", delivered, "stage", p.stage.String())
	if n := p.deps.Notifier; n != nil {
		n.Scored(p, delivered)
	}
}
