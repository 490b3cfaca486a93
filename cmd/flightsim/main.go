// Command flightsim runs a headless fleet of autonomous quadcopters through
// a pickup match and records the flight.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/flightcore/internal/api"
	"github.com/OCAP2/flightcore/internal/config"
	"github.com/OCAP2/flightcore/internal/dispatcher"
	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/influx"
	"github.com/OCAP2/flightcore/internal/logging"
	"github.com/OCAP2/flightcore/internal/mission"
	"github.com/OCAP2/flightcore/internal/monitor"
	intOtel "github.com/OCAP2/flightcore/internal/otel"
	"github.com/OCAP2/flightcore/internal/sim"
	"github.com/OCAP2/flightcore/internal/storage"
	"github.com/OCAP2/flightcore/internal/worker"
	"github.com/OCAP2/flightcore/pkg/core"
)

// BuildVersion and BuildDate can be set at build time via ldflags.
var (
	BuildVersion = "0.0.1"
	BuildDate    = "unknown"
)

const appName = "flightsim"

// shutdownTimeout bounds the dispatcher drain and log flush on exit.
const shutdownTimeout = 30 * time.Second

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":   "logLevel",
	"logs-dir":    "logsDir",
	"storage":     "storage.type",
	"mission":     "sim.missionName",
	"duration":    "sim.duration",
	"fleet-size":  "sim.fleetSize",
	"realtime":    "sim.realtime",
	"return-home": "sim.returnHome",
	"seed":        "match.seed",
	"influx":      "influx.enabled",
	"upload":      "api.enabled",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.StringP("config-dir", "c", "", "directory containing "+config.FileName)
	fs.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "./logs", "directory for log files")
	fs.StringP("storage", "s", storage.TypeMemory, "storage backend (memory, sqlite, postgres, websocket, none)")
	fs.String("mission", "flightsim", "mission name")
	fs.DurationP("duration", "d", 2*time.Minute, "simulated run length")
	fs.IntP("fleet-size", "n", 3, "number of vehicles")
	fs.Bool("realtime", false, "pace steps to the wall clock")
	fs.Bool("return-home", false, "fly the fleet home and land it when the match ends")
	fs.Int64("seed", 0, "pickup placement seed, 0 picks one at random")
	fs.Bool("influx", false, "write telemetry to InfluxDB")
	fs.Bool("upload", false, "upload the recording when the run ends")
	fs.BoolP("version", "v", false, "print version and exit")
	return fs
}

// bindFlags makes flags the user set override the config file.
func bindFlags(fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func main() {
	fs := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if v, _ := fs.GetBool("version"); v {
		fmt.Printf("%s %s (%s)\n", appName, BuildVersion, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, fs); err != nil {
		fmt.Fprintln(os.Stderr, "flightsim:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, fs *pflag.FlagSet) error {
	configDir, _ := fs.GetString("config-dir")
	if err := config.Load(configDir); err != nil {
		return err
	}
	if err := bindFlags(fs); err != nil {
		return err
	}

	sessionStart := time.Now()
	level := viper.GetString("logLevel")
	logFile, err := logging.OpenLogFile(viper.GetString("logsDir"), appName, sessionStart)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	otelProvider, err := intOtel.New(intOtel.FromSettings(config.OTel(), BuildVersion, logFile))
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}

	missionCtx := mission.NewContext()
	slogManager := logging.NewSlogManager()
	slogManager.SetContextProvider(logging.SimulationContext(missionCtx.Name, missionCtx.Tick))
	slogManager.Setup(logFile, level, otelProvider.LoggerProvider())
	logger := slogManager.Logger()
	slog.SetDefault(logger)
	zlog := logging.NewZerolog(logFile, level)

	logger.Info("Starting up", "version", BuildVersion, "buildDate", BuildDate, "logFile", logFile.Name())
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := slogManager.Flush(flushCtx); err != nil {
			fmt.Fprintln(os.Stderr, "flushing logs:", err)
		}
		if err := otelProvider.Shutdown(flushCtx); err != nil {
			fmt.Fprintln(os.Stderr, "shutting down OpenTelemetry:", err)
		}
	}()

	o := config.Geo()
	ref, err := geo.NewReference(o.Lon, o.Lat, o.Alt)
	if err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	backend, err := newBackend(viper.GetString("storage.type"), ref, slogManager, zlog)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("initializing storage backend: %w", err)
		}
	}

	var telemetry worker.Telemetry
	if cfg := config.Influx(); cfg.Enabled {
		im := influx.NewManager(cfg, ref, zlog)
		if err := im.Connect(ctx); err != nil {
			logger.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
		} else {
			telemetry = im
		}
	}

	d, err := dispatcher.NewWithMeter(
		logging.NewDispatcherLogger(zlog.With().Str("component", "dispatcher").Logger()),
		otelProvider.Meter("flightcore/dispatcher"))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	wm := worker.NewManager(worker.Dependencies{
		Backend:   backend,
		Telemetry: telemetry,
		Mission:   missionCtx,
		Logger:    slogManager.Component("worker"),
	})
	wm.RegisterHandlers(d)

	mon := startMonitor(ctx, wm, missionCtx, backend, slogManager.Component("monitor"))

	world, err := sim.New(settings, sim.Dependencies{
		Publisher: d,
		Logger:    slogManager.Component("sim"),
		Meter:     otelProvider.Meter("flightcore/sim"),
	})
	if err != nil {
		return err
	}

	result := world.Run(ctx)
	logger.Info("Run complete",
		"winner", result.Winner, "reason", result.Reason, "ticks", result.Tick, "elapsed", result.Elapsed)

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.Close(drainCtx); err != nil {
		logger.Error("Dispatcher did not drain", "error", err)
	}
	if mon != nil {
		mon.Stop()
	}
	if err := wm.Finish(); err != nil {
		logger.Error("Failed to finish recording", "error", err)
	}

	if cfg := config.API(); cfg.Enabled {
		if err := uploadRecording(drainCtx, cfg, backend, world.Mission(), result); err != nil {
			logger.Error("Upload failed", "error", err)
		} else {
			logger.Info("Recording uploaded", "server", cfg.ServerURL)
		}
	}
	return nil
}

// loadSettings builds the world settings from the loaded configuration.
func loadSettings() (sim.Settings, error) {
	var (
		s   sim.Settings
		err error
	)
	if s.Sim, err = config.SimConfig(); err != nil {
		return s, err
	}
	if s.Vehicle, err = config.VehicleParams(); err != nil {
		return s, err
	}
	if s.Pilot, err = config.PilotConfig(); err != nil {
		return s, err
	}
	if s.Match, err = config.MatchConfig(); err != nil {
		return s, err
	}
	return s, nil
}

func startMonitor(ctx context.Context, wm *worker.Manager, mc *mission.Context, backend storage.Backend, log *slog.Logger) *monitor.Service {
	cfg := config.Monitor()
	if !cfg.Enabled {
		return nil
	}
	deps := monitor.Dependencies{
		Worker:     wm,
		Mission:    mc,
		Logger:     log,
		StatusFile: cfg.StatusFile,
		Interval:   cfg.Interval,
	}
	if p, ok := backend.(monitor.Pender); ok {
		deps.Pending = p
	}
	mon := monitor.NewService(deps)
	if err := mon.Start(ctx); err != nil {
		log.Warn("Status monitor not started", "error", err)
		return nil
	}
	return mon
}

var errNothingToUpload = errors.New("backend wrote no recording file")

func uploadRecording(ctx context.Context, cfg config.APIConfig, backend storage.Backend, m core.Mission, result core.MatchResult) error {
	exp, ok := backend.(storage.Exporter)
	if !ok || exp.ExportedPath() == "" {
		return errNothingToUpload
	}
	client := api.New(cfg.ServerURL, cfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	return client.Upload(ctx, exp.ExportedPath(), api.UploadMetadata{
		MissionName: m.Name,
		Duration:    result.Elapsed.Seconds(),
		Winner:      result.Winner,
		Tag:         cfg.Tag,
	})
}
