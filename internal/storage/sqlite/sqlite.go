// Package sqlitestorage records into an in-memory SQLite database and
// snapshots it to disk with VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/flightcore/internal/database"
	"github.com/OCAP2/flightcore/internal/geo"
	gormstorage "github.com/OCAP2/flightcore/internal/storage/gorm"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string
	// DSN overrides the shared in-memory database.
	DSN string
}

// Backend wraps the GORM backend with periodic and final disk dumps.
type Backend struct {
	*gormstorage.Backend
	db   *gorm.DB
	cfg  Config
	log  *slog.Logger
	stop chan struct{}
	done chan struct{}
}

// New opens the database. Nothing is migrated until Init.
func New(cfg Config, ref *geo.Reference, logger *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	db, err := database.SQLite(cfg.DSN, dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:        db,
			Reference: ref,
			Logger:    logger,
			DBLogger:  dbLog,
		}),
		db:  db,
		cfg: cfg,
		log: logger.With("backend", "sqlite"),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.stop = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// EndMission flushes and writes a final snapshot.
func (b *Backend) EndMission() error {
	if err := b.Backend.EndMission(); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine, then closes the embedded GORM backend.
func (b *Backend) Close() error {
	if b.stop != nil {
		close(b.stop)
		<-b.done
		b.stop = nil
	}
	return b.Backend.Close()
}

// Dump flushes pending rows and snapshots the database to DumpPath. It is
// a no-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	b.Flush()
	start := time.Now()
	if err := database.DumpToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

// ExportedPath returns the snapshot file.
func (b *Backend) ExportedPath() string {
	return b.cfg.DumpPath
}

func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
