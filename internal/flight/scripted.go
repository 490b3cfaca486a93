package flight

import (
	"github.com/OCAP2/flightcore/internal/tween"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// ReturnHome flies the vehicle back to its spawn point along a scripted
// path: climb to the return altitude, cross over home, descend, then land.
// It is accepted only while Flying and reports whether it was.
func (v *Vehicle) ReturnHome() bool {
	if v.state != core.StateFlying {
		return false
	}
	v.setState(core.StateReturnHome)
	v.halt()

	p := v.params
	v.rotation = &tween.Angle{
		From:     v.body.Yaw(),
		To:       v.homeYaw,
		Duration: p.ReturnRotateDuration,
		Ease:     tween.OutQuad,
	}

	above := mgl64.Vec3{v.home.X(), p.ReturnAltitude, v.home.Z()}
	landing := v.home.Add(mgl64.Vec3{0, p.HomeOffset, 0})
	v.moves = tween.NewSequence(
		tween.MoveY(p.ReturnAltitude, p.ReturnSpeed, tween.Linear),
		tween.MoveTo(above, p.ReturnSpeed, tween.Linear),
		tween.MoveToIn(landing, p.ReturnAltitude/p.ReturnSpeed, tween.OutQuad),
	).OnUpdate(v.moveBody).OnComplete(v.activateAutoLanding)
	v.moves.Start(v.body.Position)

	v.logger.Info("returning home", "from", v.body.Position, "home", v.home)
	return true
}

// activateAutoLanding starts the final vertical descent to the floor.
func (v *Vehicle) activateAutoLanding() {
	v.halt()
	v.setState(core.StateAutoLanding)

	pos := v.body.Position
	floor := mgl64.Vec3{pos.X(), v.params.FloorHeight, pos.Z()}
	v.moves = tween.NewSequence(
		tween.MoveToIn(floor, v.params.LandingDuration, tween.OutQuad),
	).OnUpdate(v.moveBody).OnComplete(func() {
		v.visualOn = false
		v.setState(core.StateOff)
	})
	v.moves.Start(pos)
}

func (v *Vehicle) moveBody(p mgl64.Vec3) {
	v.body.Position = p
}
