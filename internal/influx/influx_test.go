package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"testing"
	"time"

	"github.com/OCAP2/flightcore/internal/config"
	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(t *testing.T) config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:   true,
		Host:      "127.0.0.1",
		Port:      "1",
		Protocol:  "http",
		Org:       "flightcore",
		Bucket:    "flight_telemetry",
		BackupDir: t.TempDir(),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestVehicleStatePoint(t *testing.T) {
	ref, err := geo.NewReference(13.4, 52.5, 0)
	require.NoError(t, err)
	ts := time.Unix(1700000000, 0)

	p := VehicleStatePoint(&core.VehicleState{
		VehicleID: 3, Tick: 12, Time: ts,
		Position: core.Position3D{X: 1, Y: 1.5, Z: -2},
		Velocity: core.Position3D{X: 3, Z: 4},
		Yaw:      45, State: core.StateFlying, Stage: core.StageMoveToTarget,
		Input: core.Axes{Throttle: 0.5},
	}, ref)

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "vehicle_state,stage=MoveToTarget,state=Flying,vehicle=3 ")
	assert.Contains(t, line, "speed=5")
	assert.Contains(t, line, "throttle=0.5")
	assert.Contains(t, line, "y=1.5")

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.InDelta(t, 13.4, fields["lon"], 1e-3)
	assert.InDelta(t, 52.5, fields["lat"], 1e-3)
	assert.Equal(t, ts, p.Time())
}

func TestMatchResultPoint(t *testing.T) {
	p := MatchResultPoint(&core.MatchResult{
		Winner: "drone-02", Reason: "time", Scores: map[uint16]int{1: 50, 2: 100}, Elapsed: 2 * time.Second,
	})
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "match_result,reason=time ")
	assert.Contains(t, line, `winner="drone-02"`)
	assert.Contains(t, line, "score_1=50i")
	assert.Contains(t, line, "score_2=100i")
	assert.Contains(t, line, "elapsed_ms=2000i")
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(unreachable(t), nil, zerolog.Nop())
	assert.ErrorIs(t, m.WriteArrival(&core.ArrivalEvent{VehicleID: 1}), ErrNotConnected)
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	cfg := unreachable(t)
	m := NewManager(cfg, nil, zerolog.Nop())
	assert.Equal(t, "http://127.0.0.1:1", m.ServerURL())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.Connected())

	require.NoError(t, m.WriteVehicleState(&core.VehicleState{VehicleID: 1, Tick: 1, State: core.StateReadyToFly}))
	require.NoError(t, m.WriteArrival(&core.ArrivalEvent{VehicleID: 1, Tick: 2, Kind: core.ArrivalScored, PickupID: 5}))
	require.NoError(t, m.Close())

	lines := readLines(t, m.BackupPath())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "vehicle_state,stage=Off,state=ReadyToFly,vehicle=1")
	assert.Contains(t, lines[1], "arrival,kind=scored,vehicle=1")
	assert.Contains(t, lines[1], "pickup=5u")

	assert.ErrorIs(t, m.WriteArrival(&core.ArrivalEvent{}), ErrNotConnected)
}
