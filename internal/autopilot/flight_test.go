package autopilot_test

import (
	"testing"

	"github.com/OCAP2/flightcore/internal/autopilot"
	"github.com/OCAP2/flightcore/internal/flight"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 0.02

func flownVehicle(t *testing.T, cfg autopilot.Config) (*flight.Vehicle, *autopilot.Pilot) {
	t.Helper()
	v, err := flight.New(3, flight.DefaultParams(), mgl64.Vec3{}, 0, flight.Dependencies{})
	require.NoError(t, err)
	p, err := autopilot.New(cfg, autopilot.Dependencies{Vehicle: v})
	require.NoError(t, err)
	v.SetSource(p)
	require.True(t, v.PowerOn())
	return v, p
}

func tick(v *flight.Vehicle) {
	v.FixedUpdate(dt)
	v.Body().Step(dt)
	v.Update(dt)
}

func TestPilot_ClimbsToHoverAndHolds(t *testing.T) {
	cfg := autopilot.DefaultConfig()
	v, p := flownVehicle(t, cfg)

	var heights []float64
	completedAt := -1
	for i := 0; i < 600; i++ {
		tick(v)
		if completedAt < 0 && p.HoveringComplete() {
			completedAt = i
		}
		heights = append(heights, v.Body().Height())
	}
	require.Greater(t, completedAt, 0)
	assert.Equal(t, core.StateFlying, v.State())

	// The pilot samples the height left by the previous step.
	for i := 0; i < completedAt-1; i++ {
		assert.False(t, autopilot.HoverReached(cfg.HoverHeight-heights[i], cfg.Tolerance), "step %d", i)
	}
	assert.True(t, autopilot.HoverReached(cfg.HoverHeight-heights[completedAt-1], cfg.Tolerance))

	for _, h := range heights[len(heights)-250:] {
		assert.InDelta(t, cfg.HoverHeight, h, 0.1)
	}
	assert.Equal(t, core.StageMoveToTarget, p.Stage())
}

type deliveries struct {
	collected, scored int
}

func (d *deliveries) Collected(*autopilot.Pilot, uint) { d.collected++ }
func (d *deliveries) Scored(*autopilot.Pilot, uint)    { d.scored++ }

func TestPilot_FetchesPickupAndReturnsHome(t *testing.T) {
	const trigger = 0.4
	cfg := autopilot.DefaultConfig()
	v, p := flownVehicle(t, cfg)
	d := &deliveries{}
	p.SetNotifier(d)
	target := mgl64.Vec3{3, 1.5, 4}
	p.SetTarget(target)

	for i := 0; i < 2000 && d.scored == 0; i++ {
		tick(v)
		if p.Stage() == core.StageMoveToTarget && v.Body().Position.Sub(target).Len() <= trigger {
			p.EnterPickupTrigger(1)
		}
	}

	assert.Equal(t, 1, d.collected)
	assert.Equal(t, 1, d.scored)
	assert.Equal(t, core.StageMoveToTarget, p.Stage())
	home := autopilot.Planar(p.Home())
	assert.LessOrEqual(t, autopilot.Planar(v.Body().Position).Sub(home).Len(), cfg.HomeRadius)
	_, carrying := p.Carrying()
	assert.False(t, carrying)
}
