// Package influx writes flight telemetry points to InfluxDB, falling back
// to a gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/OCAP2/flightcore/internal/config"
	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurements.
const (
	MeasurementVehicleState = "vehicle_state"
	MeasurementArrival      = "arrival"
	MeasurementMatchResult  = "match_result"
)

// BackupFileName is created in InfluxConfig.BackupDir.
const BackupFileName = "influx_backup.lp.gz"

// retention of created buckets
const retentionSeconds = 60 * 60 * 24 * 90

// ErrNotConnected is returned when neither the server nor the backup file
// is available.
var ErrNotConnected = errors.New("influxdb client not initialized and backup writer not available")

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg    config.InfluxConfig
	ref    *geo.Reference
	Logger zerolog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
}

// NewManager creates a new InfluxDB manager. A nil reference pins the
// local origin to 0,0.
func NewManager(cfg config.InfluxConfig, ref *geo.Reference, log zerolog.Logger) *Manager {
	if ref == nil {
		ref, _ = geo.NewReference(0, 0, 0)
	}
	return &Manager{cfg: cfg, ref: ref, Logger: log}
}

// ServerURL is protocol://host:port.
func (m *Manager) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// BackupPath is where points go while the server is unreachable.
func (m *Manager) BackupPath() string {
	return filepath.Join(m.cfg.BackupDir, BackupFileName)
}

// Connected reports whether points go to the server.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// Connect pings the server and prepares the bucket. When the server cannot
// be reached, points are appended to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.ServerURL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.client.Close()
		m.client = nil
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath()).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.valid = true
	m.Logger.Info().Str("url", m.ServerURL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backup != nil {
		return nil
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(m.BackupPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", m.cfg.Org, err)
		}
	}

	buckets := m.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

// WritePoint sends a point to the server or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backup == nil {
		return ErrNotConnected
	}
	// PointToLineProtocol terminates the line itself.
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func (m *Manager) WriteVehicleState(s *core.VehicleState) error {
	return m.WritePoint(VehicleStatePoint(s, m.ref))
}

func (m *Manager) WriteArrival(e *core.ArrivalEvent) error {
	return m.WritePoint(ArrivalPoint(e))
}

func (m *Manager) WriteMatchResult(r *core.MatchResult) error {
	return m.WritePoint(MatchResultPoint(r))
}

// Close flushes pending points and releases the client or backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.writer != nil {
		m.writer.Flush()
		m.writer = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	if m.backup != nil {
		errs = append(errs, m.backup.Close(), m.backupFile.Close())
		m.backup, m.backupFile = nil, nil
	}
	m.valid = false
	return errors.Join(errs...)
}

func vehicleTag(id uint16) string {
	return strconv.FormatUint(uint64(id), 10)
}

// VehicleStatePoint builds a vehicle_state point tagged by vehicle, state
// and stage.
func VehicleStatePoint(s *core.VehicleState, ref *geo.Reference) *influxdb2_write.Point {
	lon, lat, _ := ref.WGS84(s.Position)
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(MeasurementVehicleState,
		map[string]string{
			"vehicle": vehicleTag(s.VehicleID),
			"state":   s.State.String(),
			"stage":   s.Stage.String(),
		},
		map[string]any{
			"tick":     s.Tick,
			"x":        s.Position.X,
			"y":        s.Position.Y,
			"z":        s.Position.Z,
			"lon":      lon,
			"lat":      lat,
			"speed":    s.Speed(),
			"yaw":      s.Yaw,
			"throttle": s.Input.Throttle,
		},
		ts,
	)
}

func ArrivalPoint(e *core.ArrivalEvent) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementArrival,
		map[string]string{
			"vehicle": vehicleTag(e.VehicleID),
			"kind":    string(e.Kind),
		},
		map[string]any{
			"tick":   e.Tick,
			"pickup": e.PickupID,
		},
		time.Now(),
	)
}

func MatchResultPoint(r *core.MatchResult) *influxdb2_write.Point {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2.NewPoint(MeasurementMatchResult,
		map[string]string{"reason": r.Reason},
		map[string]any{
			"tick":       r.Tick,
			"winner":     r.Winner,
			"elapsed_ms": r.Elapsed.Milliseconds(),
		},
		ts,
	)
	for id, score := range r.Scores {
		p.AddField("score_"+vehicleTag(id), score)
	}
	return p
}
