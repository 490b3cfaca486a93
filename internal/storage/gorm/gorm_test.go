package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/flightcore/internal/database"
	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/model"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.SQLite(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)

	ref, err := geo.NewReference(13.4, 52.5, 30)
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Reference: ref, DBLogger: zerolog.Nop(), FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func startMission(t *testing.T, b *Backend) *core.Mission {
	t.Helper()
	m := &core.Mission{Name: "test", StartTime: time.Now(), FixedRate: 50, FleetSize: 2}
	require.NoError(t, b.StartMission(m))
	require.NotZero(t, m.ID)
	return m
}

func count(t *testing.T, b *Backend, table any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, b.DB().Model(table).Count(&n).Error)
	return n
}

func TestInit_NoDB(t *testing.T) {
	assert.Error(t, New(Dependencies{}).Init())
}

func TestRecord_BeforeStartMission(t *testing.T) {
	b := newTestBackend(t)

	assert.ErrorIs(t, b.AddVehicle(&core.Vehicle{ID: 1}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordStateChange(&core.StateChange{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordArrival(&core.ArrivalEvent{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordMatchResult(&core.MatchResult{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.EndMission(), storage.ErrNoMission)
	assert.Zero(t, b.Pending())
}

func TestRecord_QueuesUntilFlush(t *testing.T) {
	b := newTestBackend(t)
	m := startMission(t, b)

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Callsign: "drone-01", JoinTime: time.Now()}))
	for tick := range uint(5) {
		require.NoError(t, b.RecordVehicleState(&core.VehicleState{
			VehicleID: 1, Tick: tick, Time: time.Now(),
			Position: core.Position3D{Y: float64(tick) * 0.1},
			State:    core.StateFlying,
		}))
	}
	require.NoError(t, b.RecordStateChange(&core.StateChange{VehicleID: 1, Tick: 2, From: core.StateReadyToFly, To: core.StateFlying}))
	require.NoError(t, b.RecordArrival(&core.ArrivalEvent{VehicleID: 1, Tick: 4, Kind: core.ArrivalCollected, PickupID: 2}))

	assert.Equal(t, 8, b.Pending())
	assert.Zero(t, count(t, b, &model.VehicleState{}))

	b.Flush()
	assert.Zero(t, b.Pending())
	assert.Equal(t, int64(1), count(t, b, &model.Vehicle{}))
	assert.Equal(t, int64(5), count(t, b, &model.VehicleState{}))
	assert.Equal(t, int64(1), count(t, b, &model.StateChange{}))
	assert.Equal(t, int64(1), count(t, b, &model.ArrivalEvent{}))

	var states []model.VehicleState
	require.NoError(t, b.DB().Order("tick").Find(&states).Error)
	assert.Equal(t, m.ID, states[0].MissionID)
	assert.Equal(t, "Flying", states[4].State)
	assert.InDelta(t, 0.4, states[4].Local.Data().Y, 1e-9)
}

func TestEndMission_FlushesAndDetaches(t *testing.T) {
	b := newTestBackend(t)
	startMission(t, b)

	require.NoError(t, b.RecordMatchResult(&core.MatchResult{
		Winner: "drone-01", Reason: "time", Scores: map[uint16]int{1: 50},
	}))
	require.NoError(t, b.EndMission())

	var result model.MatchResult
	require.NoError(t, b.DB().First(&result).Error)
	assert.Equal(t, "drone-01", result.Winner)
	assert.JSONEq(t, `{"1":50}`, string(result.Scores))

	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{}), storage.ErrNoMission)
}

func TestClose_FlushesPending(t *testing.T) {
	b := newTestBackend(t)
	startMission(t, b)
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 3, JoinTime: time.Now()}))

	require.NoError(t, b.Close())
	assert.Equal(t, int64(1), count(t, b, &model.Vehicle{}))
	require.NoError(t, b.Close())
}

func TestWriterLoop_Flushes(t *testing.T) {
	db, err := database.SQLite(filepath.Join(t.TempDir(), "loop.db"), zerolog.Nop())
	require.NoError(t, err)
	b := New(Dependencies{DB: db, DBLogger: zerolog.Nop(), FlushInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	startMission(t, b)
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, JoinTime: time.Now()}))

	assert.Eventually(t, func() bool {
		var n int64
		return b.DB().Model(&model.Vehicle{}).Count(&n).Error == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}
