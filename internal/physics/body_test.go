package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDynamic(t *testing.T, pos mgl64.Vec3) *Body {
	t.Helper()
	b, err := NewBody(2, pos, 0)
	require.NoError(t, err)
	b.Kinematic = false
	b.UseGravity = true
	return b
}

func TestNewBody_RejectsInvalidMass(t *testing.T) {
	_, err := NewBody(0, mgl64.Vec3{}, 0)
	assert.ErrorIs(t, err, ErrInvalidMass)

	_, err = NewBody(-1, mgl64.Vec3{}, 0)
	assert.ErrorIs(t, err, ErrInvalidMass)
}

func TestStep_FreeFall(t *testing.T) {
	b := newDynamic(t, mgl64.Vec3{0, 10, 0})
	b.Step(0.1)

	assert.InDelta(t, -Gravity*0.1, b.Velocity.Y(), 1e-9)
	assert.InDelta(t, 10-Gravity*0.01, b.Position.Y(), 1e-9)
}

func TestStep_GroundStopsFall(t *testing.T) {
	b := newDynamic(t, mgl64.Vec3{0, 0.01, 0})
	for i := 0; i < 10; i++ {
		b.Step(0.02)
	}
	assert.Equal(t, 0.0, b.Position.Y())
	assert.Equal(t, 0.0, b.Velocity.Y())
	assert.True(t, b.Grounded())
}

func TestStep_HoverForceCancelsGravity(t *testing.T) {
	b := newDynamic(t, mgl64.Vec3{0, 5, 0})
	for i := 0; i < 50; i++ {
		b.AddRelativeForce(Up.Mul(b.Mass() * Gravity))
		b.Step(0.02)
	}
	assert.InDelta(t, 5.0, b.Position.Y(), 1e-9)
}

func TestStep_KinematicIgnoresForces(t *testing.T) {
	b, err := NewBody(1, mgl64.Vec3{1, 2, 3}, 0)
	require.NoError(t, err)
	b.AddForce(mgl64.Vec3{100, 100, 100})
	b.Step(0.02)

	assert.Equal(t, mgl64.Vec3{1, 2, 3}, b.Position)
	assert.Equal(t, mgl64.Vec3{}, b.PendingForce(), "forces are cleared even when kinematic")
}

func TestAddRelativeForce_FollowsYaw(t *testing.T) {
	b := newDynamic(t, mgl64.Vec3{0, 5, 0})
	b.UseGravity = false
	b.SetYaw(90)
	b.AddRelativeForce(Forward.Mul(2))

	f := b.PendingForce()
	assert.InDelta(t, 2, f.X(), 1e-9, "forward at 90 degrees points along +X")
	assert.InDelta(t, 0, f.Z(), 1e-9)
}

func TestYaw_RoundTrip(t *testing.T) {
	b, err := NewBody(1, mgl64.Vec3{}, 0)
	require.NoError(t, err)
	for _, deg := range []float64{0, 45, 90, -135, 179} {
		b.SetYaw(deg)
		assert.InDelta(t, deg, b.Yaw(), 1e-9)
	}
}

func TestToLocal(t *testing.T) {
	b, err := NewBody(1, mgl64.Vec3{}, 90)
	require.NoError(t, err)
	local := b.ToLocal(mgl64.Vec3{1, 0, 0})
	assert.InDelta(t, 1, local.Z(), 1e-9, "world +X is straight ahead when facing 90")
	assert.InDelta(t, 0, local.X(), 1e-9)
}

func TestSetTilt_LeavesBodyRotation(t *testing.T) {
	b, err := NewBody(1, mgl64.Vec3{}, 30)
	require.NoError(t, err)
	b.SetTilt(10, -5)

	assert.InDelta(t, 30, b.Yaw(), 1e-9)
	assert.False(t, b.Visual.ApproxEqual(mgl64.QuatIdent()))
}
