package match

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// Pickup is one collectable item on the field.
type Pickup struct {
	ID       uint
	Position mgl64.Vec3
}

// Field keeps a fixed number of pickups alive. It is not safe for
// concurrent use; the world owns it.
type Field struct {
	cfg     Config
	rng     *rand.Rand
	pickups []Pickup
	nextID  uint
}

// NewField creates a field and spawns the configured number of pickups.
// The same seed yields the same layout.
func NewField(cfg Config) *Field {
	f := &Field{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	for len(f.pickups) < cfg.Pickups {
		f.spawn()
	}
	return f
}

// Pickups returns a copy of the live pickups in spawn order.
func (f *Field) Pickups() []Pickup {
	out := make([]Pickup, len(f.pickups))
	copy(out, f.pickups)
	return out
}

// Get looks up a live pickup.
func (f *Field) Get(id uint) (Pickup, bool) {
	for _, p := range f.pickups {
		if p.ID == id {
			return p, true
		}
	}
	return Pickup{}, false
}

// Collect removes a pickup and spawns its replacement.
func (f *Field) Collect(id uint) (Pickup, bool) {
	for i, p := range f.pickups {
		if p.ID != id {
			continue
		}
		f.pickups = append(f.pickups[:i], f.pickups[i+1:]...)
		return f.spawn(), true
	}
	return Pickup{}, false
}

// Inside returns the first pickup whose trigger sphere contains pos.
func (f *Field) Inside(pos mgl64.Vec3) (Pickup, bool) {
	for _, p := range f.pickups {
		if p.Position.Sub(pos).Len() <= f.cfg.TriggerRadius {
			return p, true
		}
	}
	return Pickup{}, false
}

// Nearest returns the live pickup closest to pos on the ground plane,
// skipping the ids for which skip returns true.
func (f *Field) Nearest(pos mgl64.Vec3, skip func(uint) bool) (Pickup, bool) {
	var best Pickup
	bestDist := -1.0
	for _, p := range f.pickups {
		if skip != nil && skip(p.ID) {
			continue
		}
		d := planarDist(p.Position, pos)
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist >= 0
}

func (f *Field) spawn() Pickup {
	var candidate mgl64.Vec3
	for i := 0; i < f.cfg.SpawnAttempts; i++ {
		candidate = f.randomPoint()
		if f.separated(candidate) {
			break
		}
	}
	f.nextID++
	p := Pickup{ID: f.nextID, Position: candidate}
	f.pickups = append(f.pickups, p)
	return p
}

func (f *Field) randomPoint() mgl64.Vec3 {
	lo, hi := f.cfg.SpawnMin, f.cfg.SpawnMax
	x := lo[0] + f.rng.Float64()*(hi[0]-lo[0])
	z := lo[1] + f.rng.Float64()*(hi[1]-lo[1])
	return mgl64.Vec3{x, f.cfg.SpawnHeight, z}
}

func (f *Field) separated(pos mgl64.Vec3) bool {
	for _, p := range f.pickups {
		if planarDist(p.Position, pos) < f.cfg.MinSeparation {
			return false
		}
	}
	return true
}

func planarDist(a, b mgl64.Vec3) float64 {
	d := a.Sub(b)
	d[1] = 0
	return d.Len()
}
