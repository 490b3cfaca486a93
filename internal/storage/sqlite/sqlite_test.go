package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/flightcore/internal/database"
	"github.com/OCAP2/flightcore/internal/model"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

func newBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	cfg.DSN = filepath.Join(t.TempDir(), "live.db")
	b, err := New(cfg, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func vehicles(t *testing.T, path string) int64 {
	t.Helper()
	db, err := database.SQLite(path, zerolog.Nop())
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&model.Vehicle{}).Count(&n).Error)
	return n
}

func TestEndMission_WritesSnapshot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "mission.db")
	b := newBackend(t, Config{DumpPath: out})

	require.NoError(t, b.StartMission(&core.Mission{Name: "snap", StartTime: time.Now()}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, JoinTime: time.Now()}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 2, JoinTime: time.Now()}))
	require.NoError(t, b.EndMission())

	assert.Equal(t, out, b.ExportedPath())
	assert.Equal(t, int64(2), vehicles(t, out))
}

func TestDump_NoPath(t *testing.T) {
	b := newBackend(t, Config{})
	assert.NoError(t, b.Dump())
}

func TestDumpLoop(t *testing.T) {
	out := filepath.Join(t.TempDir(), "periodic.db")
	b := newBackend(t, Config{DumpPath: out, DumpInterval: 20 * time.Millisecond})

	require.NoError(t, b.StartMission(&core.Mission{Name: "loop", StartTime: time.Now()}))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, JoinTime: time.Now()}))

	assert.Eventually(t, func() bool {
		if _, err := os.Stat(out); err != nil {
			return false
		}
		db, err := database.SQLite(out, zerolog.Nop())
		if err != nil {
			return false
		}
		var n int64
		return db.Model(&model.Vehicle{}).Count(&n).Error == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond)
}
