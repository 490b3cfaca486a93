package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/flightcore/internal/config"
	"github.com/OCAP2/flightcore/internal/storage"
	v1 "github.com/OCAP2/flightcore/internal/storage/memory/export/v1"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMission(name string) *core.Mission {
	return &core.Mission{
		Name:      name,
		StartTime: time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC),
		FixedRate: 50,
	}
}

func record(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Callsign: "drone-01", Autopilot: true}))
	for tick := range uint(3) {
		require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 1, Tick: tick, State: core.StateFlying}))
	}
	require.NoError(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 9, Tick: 1}))
	require.NoError(t, b.RecordStateChange(&core.StateChange{VehicleID: 1, Tick: 1, From: core.StateReadyToFly, To: core.StateFlying}))
	require.NoError(t, b.RecordArrival(&core.ArrivalEvent{VehicleID: 1, Tick: 2, Kind: core.ArrivalCollected, PickupID: 1}))
	require.NoError(t, b.RecordMatchResult(&core.MatchResult{Tick: 3, Winner: "drone-01", Reason: "time", Scores: map[uint16]int{1: 50}}))
}

func readExport(t *testing.T, path string, compressed bool) v1.Export {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var export v1.Export
	if compressed {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		require.NoError(t, json.NewDecoder(gz).Decode(&export))
	} else {
		require.NoError(t, json.NewDecoder(f).Decode(&export))
	}
	return export
}

func TestRecord_WithoutMission(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)

	assert.ErrorIs(t, b.AddVehicle(&core.Vehicle{ID: 1}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordStateChange(&core.StateChange{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordArrival(&core.ArrivalEvent{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.RecordMatchResult(&core.MatchResult{}), storage.ErrNoMission)
	assert.ErrorIs(t, b.EndMission(), storage.ErrNoMission)
}

func TestStartMission_AssignsIDAndResets(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)

	first := newMission("one")
	require.NoError(t, b.StartMission(first))
	assert.Equal(t, uint(1), first.ID)
	record(t, b)
	assert.Equal(t, 3, b.StateCount(1))

	second := newMission("two")
	require.NoError(t, b.StartMission(second))
	assert.Equal(t, uint(2), second.ID)
	_, ok := b.GetVehicle(1)
	assert.False(t, ok)
	assert.Zero(t, b.StateCount(1))
}

func TestEndMission_WritesGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true}, nil)
	require.NoError(t, b.StartMission(newMission("Dawn Patrol: 2")))
	record(t, b)

	v, ok := b.GetVehicle(1)
	require.True(t, ok)
	assert.Equal(t, "drone-01", v.Callsign)

	require.NoError(t, b.EndMission())

	path := b.ExportedPath()
	assert.Equal(t, filepath.Join(dir, "Dawn_Patrol__2_20260402_083000.json.gz"), path)

	export := readExport(t, path, true)
	assert.Equal(t, "Dawn Patrol: 2", export.MissionName)
	require.Len(t, export.Entities, 2)
	assert.Len(t, export.Entities[1].Positions, 3)
	assert.Len(t, export.Entities[1].StateChanges, 1)
	assert.Len(t, export.Events, 1)
	require.NotNil(t, export.Result)
	assert.Equal(t, "drone-01", export.Result.Winner)
	assert.Equal(t, uint(3), export.EndTick)

	assert.ErrorIs(t, b.RecordVehicleState(&core.VehicleState{VehicleID: 1}), storage.ErrNoMission)
}

func TestEndMission_PlainJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	b := New(config.MemoryConfig{OutputDir: dir}, nil)
	require.NoError(t, b.StartMission(newMission("")))
	require.NoError(t, b.EndMission())

	path := b.ExportedPath()
	assert.Equal(t, filepath.Join(dir, "mission_20260402_083000.json"), path)
	export := readExport(t, path, false)
	assert.Empty(t, export.Entities)
}

func TestEndMission_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	b := New(config.MemoryConfig{OutputDir: filepath.Join(file, "sub")}, nil)
	require.NoError(t, b.StartMission(newMission("x")))
	assert.Error(t, b.EndMission())
	assert.Empty(t, b.ExportedPath())
}
