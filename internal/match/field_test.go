package match

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Duration = 0 },
		func(c *Config) { c.Pickups = -1 },
		func(c *Config) { c.SpawnMin = [2]float64{1, 0}; c.SpawnMax = [2]float64{0, 0} },
		func(c *Config) { c.TriggerRadius = -0.1 },
		func(c *Config) { c.SpawnAttempts = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "case %d", i)
	}
}

func TestField_SpawnsInsideAreaWithSeparation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42
	f := NewField(cfg)

	pickups := f.Pickups()
	require.Len(t, pickups, cfg.Pickups)
	for i, p := range pickups {
		assert.GreaterOrEqual(t, p.Position.X(), cfg.SpawnMin[0])
		assert.LessOrEqual(t, p.Position.X(), cfg.SpawnMax[0])
		assert.GreaterOrEqual(t, p.Position.Z(), cfg.SpawnMin[1])
		assert.LessOrEqual(t, p.Position.Z(), cfg.SpawnMax[1])
		assert.Equal(t, cfg.SpawnHeight, p.Position.Y())
		for _, q := range pickups[i+1:] {
			assert.GreaterOrEqual(t, planarDist(p.Position, q.Position), cfg.MinSeparation)
		}
	}
}

func TestField_SameSeedSameLayout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	assert.Equal(t, NewField(cfg).Pickups(), NewField(cfg).Pickups())

	other := cfg
	other.Seed = 8
	assert.NotEqual(t, NewField(cfg).Pickups(), NewField(other).Pickups())
}

func TestField_CollectReplaces(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 1
	f := NewField(cfg)
	first := f.Pickups()[0]

	replacement, ok := f.Collect(first.ID)
	require.True(t, ok)
	assert.Len(t, f.Pickups(), cfg.Pickups)
	assert.NotEqual(t, first.ID, replacement.ID)
	_, ok = f.Get(first.ID)
	assert.False(t, ok)
	got, ok := f.Get(replacement.ID)
	require.True(t, ok)
	assert.Equal(t, replacement, got)

	_, ok = f.Collect(first.ID)
	assert.False(t, ok, "already collected")
	assert.Len(t, f.Pickups(), cfg.Pickups)
}

func TestField_CrowdedAreaFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpawnMin = [2]float64{0, 0}
	cfg.SpawnMax = [2]float64{0.5, 0.5}
	cfg.MinSeparation = 10
	cfg.Pickups = 4
	f := NewField(cfg)
	assert.Len(t, f.Pickups(), 4)
}

func TestField_InsideTriggerRadius(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pickups = 1
	cfg.SpawnMin = [2]float64{2, 3}
	cfg.SpawnMax = [2]float64{2, 3}
	f := NewField(cfg)

	centre := mgl64.Vec3{2, cfg.SpawnHeight, 3}
	p, ok := f.Inside(centre.Add(mgl64.Vec3{cfg.TriggerRadius, 0, 0}))
	require.True(t, ok)
	assert.Equal(t, centre, p.Position)

	_, ok = f.Inside(centre.Add(mgl64.Vec3{0, cfg.TriggerRadius + 0.01, 0}))
	assert.False(t, ok)
}

func TestField_NearestSkips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 3
	f := NewField(cfg)
	origin := mgl64.Vec3{}

	best, ok := f.Nearest(origin, nil)
	require.True(t, ok)
	for _, p := range f.Pickups() {
		assert.LessOrEqual(t, planarDist(best.Position, origin), planarDist(p.Position, origin))
	}

	second, ok := f.Nearest(origin, func(id uint) bool { return id == best.ID })
	require.True(t, ok)
	assert.NotEqual(t, best.ID, second.ID)

	_, ok = f.Nearest(origin, func(uint) bool { return true })
	assert.False(t, ok)
}
