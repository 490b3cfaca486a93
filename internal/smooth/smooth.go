// Package smooth provides the critically damped smoothing and clamping
// helpers used by the flight integrator.
package smooth

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// minSmoothTime keeps the spring coefficient finite.
const minSmoothTime = 0.0001

// Damp moves current toward target with a critically damped spring.
// velocity carries the spring state between calls and is updated in place.
// The result never overshoots target.
func Damp(current, target float64, velocity *float64, smoothTime, dt float64) float64 {
	return DampMax(current, target, velocity, smoothTime, math.Inf(1), dt)
}

// DampMax is Damp with the rate of change limited to maxSpeed.
func DampMax(current, target float64, velocity *float64, smoothTime, maxSpeed, dt float64) float64 {
	if dt <= 0 {
		return current
	}
	smoothTime = math.Max(minSmoothTime, smoothTime)
	omega := 2 / smoothTime
	exp := decay(omega * dt)

	original := target
	maxChange := maxSpeed * smoothTime
	change := mgl64.Clamp(current-target, -maxChange, maxChange)
	target = current - change

	temp := (*velocity + omega*change) * dt
	*velocity = (*velocity - omega*temp) * exp
	out := target + (change+temp)*exp

	if (original-current > 0) == (out > original) {
		out = original
		*velocity = (out - original) / dt
	}
	return out
}

// DampVec is the vector form of Damp.
func DampVec(current, target mgl64.Vec3, velocity *mgl64.Vec3, smoothTime, dt float64) mgl64.Vec3 {
	if dt <= 0 {
		return current
	}
	smoothTime = math.Max(minSmoothTime, smoothTime)
	omega := 2 / smoothTime
	exp := decay(omega * dt)

	change := current.Sub(target)
	temp := velocity.Add(change.Mul(omega)).Mul(dt)
	*velocity = velocity.Sub(temp.Mul(omega)).Mul(exp)
	out := target.Add(change.Add(temp).Mul(exp))

	if target.Sub(current).Dot(out.Sub(target)) > 0 {
		out = target
		*velocity = mgl64.Vec3{}
	}
	return out
}

func decay(x float64) float64 {
	return 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)
}

// Lerp interpolates from a to b with t clamped to [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*mgl64.Clamp(t, 0, 1)
}

// ClampMagnitude scales v down so its length is at most limit.
func ClampMagnitude(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	l := v.Len()
	if l <= limit || l == 0 {
		return v
	}
	return v.Mul(limit / l)
}

// MoveTowards steps current toward target by at most maxDelta.
func MoveTowards(current, target, maxDelta float64) float64 {
	if math.Abs(target-current) <= maxDelta {
		return target
	}
	if target > current {
		return current + maxDelta
	}
	return current - maxDelta
}
