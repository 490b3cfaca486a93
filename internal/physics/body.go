// Package physics integrates a single rigid body with yaw-only orientation.
package physics

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Gravity is the standard gravitational acceleration.
const Gravity = 9.81

// Local axes. Y is up, Z is forward.
var (
	Up      = mgl64.Vec3{0, 1, 0}
	Forward = mgl64.Vec3{0, 0, 1}
	Right   = mgl64.Vec3{1, 0, 0}
)

// ErrInvalidMass is returned for a body without positive mass.
var ErrInvalidMass = errors.New("body mass must be positive")

// Body is a point mass with an orientation and a cosmetic child node.
// Forces accumulate between steps and are cleared by Step.
type Body struct {
	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Rotation        mgl64.Quat

	// UseGravity and Kinematic mirror the engine flags toggled by the
	// vehicle state machine. A kinematic body ignores forces and is moved
	// by assigning Position directly.
	UseGravity bool
	Kinematic  bool

	// GroundHeight is the lowest height the body can reach.
	GroundHeight float64

	// Visual is the local rotation of the child node carrying the
	// cosmetic pitch/roll tilt.
	Visual mgl64.Quat

	mass  float64
	force mgl64.Vec3
}

// NewBody creates a kinematic body at rest.
func NewBody(mass float64, position mgl64.Vec3, yaw float64) (*Body, error) {
	if mass <= 0 || math.IsNaN(mass) {
		return nil, ErrInvalidMass
	}
	b := &Body{
		Position:  position,
		Kinematic: true,
		Visual:    mgl64.QuatIdent(),
		mass:      mass,
	}
	b.SetYaw(yaw)
	return b, nil
}

// Mass returns the body mass.
func (b *Body) Mass() float64 { return b.mass }

// AddForce accumulates a world-space force.
func (b *Body) AddForce(f mgl64.Vec3) {
	b.force = b.force.Add(f)
}

// AddRelativeForce accumulates a force given in the body frame.
func (b *Body) AddRelativeForce(f mgl64.Vec3) {
	b.force = b.force.Add(b.Rotation.Rotate(f))
}

// PendingForce returns the force accumulated since the last step.
func (b *Body) PendingForce() mgl64.Vec3 { return b.force }

// SetYaw sets the body orientation to a pure heading in degrees.
func (b *Body) SetYaw(deg float64) {
	b.Rotation = mgl64.QuatRotate(mgl64.DegToRad(deg), Up)
}

// Yaw returns the heading in degrees, in (-180, 180].
func (b *Body) Yaw() float64 {
	f := b.Forward()
	return mgl64.RadToDeg(math.Atan2(f.X(), f.Z()))
}

// Forward returns the body forward axis in world space.
func (b *Body) Forward() mgl64.Vec3 { return b.Rotation.Rotate(Forward) }

// Right returns the body right axis in world space.
func (b *Body) Right() mgl64.Vec3 { return b.Rotation.Rotate(Right) }

// ToLocal transforms a world direction into the body frame.
func (b *Body) ToLocal(v mgl64.Vec3) mgl64.Vec3 {
	return b.Rotation.Inverse().Rotate(v)
}

// SetTilt sets the cosmetic child rotation from pitch and roll in degrees.
func (b *Body) SetTilt(pitch, roll float64) {
	b.Visual = mgl64.QuatRotate(mgl64.DegToRad(pitch), Right).
		Mul(mgl64.QuatRotate(mgl64.DegToRad(-roll), Forward))
}

// Grounded reports whether the body rests on the ground.
func (b *Body) Grounded() bool {
	return b.Position.Y() <= b.GroundHeight
}

// Height returns the height above the ground.
func (b *Body) Height() float64 {
	return b.Position.Y() - b.GroundHeight
}

// Stop clears linear and angular velocity and pending forces.
func (b *Body) Stop() {
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	b.force = mgl64.Vec3{}
}

// Step advances the body by dt with semi-implicit Euler integration.
func (b *Body) Step(dt float64) {
	defer func() { b.force = mgl64.Vec3{} }()
	if b.Kinematic || dt <= 0 {
		return
	}

	acc := b.force.Mul(1 / b.mass)
	if b.UseGravity {
		acc = acc.Sub(Up.Mul(Gravity))
	}
	b.Velocity = b.Velocity.Add(acc.Mul(dt))
	b.Position = b.Position.Add(b.Velocity.Mul(dt))

	if b.Position.Y() < b.GroundHeight {
		b.Position[1] = b.GroundHeight
		if b.Velocity.Y() < 0 {
			b.Velocity[1] = 0
		}
	}
}
