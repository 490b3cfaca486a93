// Package monitor periodically reports recording progress to a status file
// and the log.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/flightcore/internal/mission"
	"github.com/OCAP2/flightcore/internal/worker"
)

// DefaultInterval applies when the configured interval is not positive.
const DefaultInterval = time.Second

// StatsSource reports worker counters. *worker.Manager satisfies it.
type StatsSource interface {
	Stats() worker.Stats
}

// Pender reports rows waiting for a batched write.
type Pender interface {
	Pending() int
}

// Dependencies holds all dependencies for the monitor service. Pending and
// StatusFile are optional.
type Dependencies struct {
	Worker     StatsSource
	Mission    *mission.Context
	Pending    Pender
	Logger     *slog.Logger
	StatusFile string
	Interval   time.Duration
}

// Status is one snapshot of recording progress.
type Status struct {
	Time         time.Time `json:"time"`
	Mission      string    `json:"mission"`
	Tick         uint      `json:"tick"`
	Vehicles     uint64    `json:"vehicles"`
	States       uint64    `json:"states"`
	StateChanges uint64    `json:"stateChanges"`
	Arrivals     uint64    `json:"arrivals"`
	Failed       uint64    `json:"failed"`
	Pending      int       `json:"pending"`
}

// Service manages status monitoring
type Service struct {
	deps Dependencies
	log  *slog.Logger

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Mission == nil {
		deps.Mission = mission.NewContext()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{deps: deps, log: log}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current program status.
func (s *Service) Status() Status {
	st := Status{
		Time:    time.Now().UTC(),
		Mission: s.deps.Mission.Name(),
		Tick:    s.deps.Mission.Tick(),
	}
	if s.deps.Worker != nil {
		w := s.deps.Worker.Stats()
		st.Vehicles = w.Vehicles
		st.States = w.States
		st.StateChanges = w.StateChanges
		st.Arrivals = w.Arrivals
		st.Failed = w.Failed
	}
	if s.deps.Pending != nil {
		st.Pending = s.deps.Pending.Pending()
	}
	return st
}

// Start starts the status monitor goroutine. It stops on Stop or when ctx
// is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.deps.StatusFile), 0755); err != nil {
			s.mu.Unlock()
			return err
		}
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		statusFile = f
	}

	ctx, cancel := context.WithCancel(ctx)
	s.isRunning = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		s.log.Debug("Starting status monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.deps.Mission.Active() {
					continue
				}
				st := s.Status()
				if statusFile != nil {
					if err := writeStatus(statusFile, st); err != nil {
						s.log.Error("Error writing status file", "error", err)
					}
				}
				s.log.Debug("Status",
					"tick", st.Tick, "states", st.States, "arrivals", st.Arrivals,
					"failed", st.Failed, "pending", st.Pending)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func writeStatus(f *os.File, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
