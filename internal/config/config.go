// Package config loads flightcore settings with viper and turns them into
// the parameter structs of the simulation packages.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/flightcore/internal/autopilot"
	"github.com/OCAP2/flightcore/internal/flight"
	"github.com/OCAP2/flightcore/internal/match"
	"github.com/OCAP2/flightcore/internal/sim"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "flightcore.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebSocketConfig holds settings for the streaming backend.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB telemetry settings.
type InfluxConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GeoOrigin is the WGS84 point the local simulation origin is pinned to.
type GeoOrigin struct {
	Lon float64 `json:"originLon" mapstructure:"originLon"`
	Lat float64 `json:"originLat" mapstructure:"originLat"`
	Alt float64 `json:"originAlt" mapstructure:"originAlt"`
}

// APIConfig holds settings for uploading finished recordings.
type APIConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	Tag       string `json:"tag" mapstructure:"tag"`
}

// MonitorConfig holds status monitor settings.
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sim.fixedRate", 50)
	viper.SetDefault("sim.duration", 120*time.Second)
	viper.SetDefault("sim.fleetSize", 3)
	viper.SetDefault("sim.autoStartDelay", 2*time.Second)
	viper.SetDefault("sim.realtime", false)
	viper.SetDefault("sim.missionName", "flightsim")
	viper.SetDefault("sim.returnHome", false)

	p := flight.DefaultParams()
	viper.SetDefault("vehicle.mass", p.Mass)
	viper.SetDefault("vehicle.upwardForce", p.UpwardForce)
	viper.SetDefault("vehicle.downwardForce", p.DownwardForce)
	viper.SetDefault("vehicle.sidewardForce", p.SidewardForce)
	viper.SetDefault("vehicle.forwardForce", p.ForwardForce)
	viper.SetDefault("vehicle.maxSpeed", p.MaxSpeed)
	viper.SetDefault("vehicle.maxYawSpeed", p.MaxYawSpeed)
	viper.SetDefault("vehicle.maxRollTilt", p.MaxRollTilt)
	viper.SetDefault("vehicle.maxPitchTilt", p.MaxPitchTilt)
	viper.SetDefault("vehicle.tiltSmoothTime", p.TiltSmoothTime)
	viper.SetDefault("vehicle.slowDownPositioning", p.SlowDownPositioning)
	viper.SetDefault("vehicle.slowDownAttitude", p.SlowDownAttitude)
	viper.SetDefault("vehicle.slowDownVertical", p.SlowDownVertical)
	viper.SetDefault("vehicle.hoverBand", p.HoverBand)
	viper.SetDefault("vehicle.flightMode", p.Mode.String())
	viper.SetDefault("vehicle.engineStartDelay", time.Second)

	viper.SetDefault("returnHome.altitude", p.ReturnAltitude)
	viper.SetDefault("returnHome.speed", p.ReturnSpeed)
	viper.SetDefault("returnHome.rotateDuration", 4*time.Second)
	viper.SetDefault("returnHome.homeOffset", p.HomeOffset)

	viper.SetDefault("landing.floorHeight", p.FloorHeight)
	viper.SetDefault("landing.duration", 3*time.Second)
	viper.SetDefault("landing.delay", 2*time.Second)
	viper.SetDefault("landing.proximity", false)
	viper.SetDefault("landing.safeHeight", p.SafeHeight)

	a := autopilot.DefaultConfig()
	viper.SetDefault("autopilot.enabled", true)
	viper.SetDefault("autopilot.hoverHeight", a.HoverHeight)
	viper.SetDefault("autopilot.tolerance", a.Tolerance)
	viper.SetDefault("autopilot.climbGain", a.ClimbGain)
	viper.SetDefault("autopilot.baseThrottle", a.BaseThrottle)
	viper.SetDefault("autopilot.maxThrottle", a.MaxThrottle)
	viper.SetDefault("autopilot.holdGain", a.HoldGain)
	viper.SetDefault("autopilot.holdDamping", a.HoldDamping)
	viper.SetDefault("autopilot.hoverPause", 2*time.Second)
	viper.SetDefault("autopilot.pitchSensitivity", a.PitchSensitivity)
	viper.SetDefault("autopilot.rollSensitivity", a.RollSensitivity)
	viper.SetDefault("autopilot.maxPitch", a.MaxPitch)
	viper.SetDefault("autopilot.maxRoll", a.MaxRoll)
	viper.SetDefault("autopilot.maxYaw", a.MaxYaw)
	viper.SetDefault("autopilot.turnTrimRate", a.TurnTrimRate)
	viper.SetDefault("autopilot.targetRadius", a.TargetRadius)
	viper.SetDefault("autopilot.homeRadius", a.HomeRadius)
	viper.SetDefault("autopilot.fleetLoop", a.FleetLoop)

	m := match.DefaultConfig()
	viper.SetDefault("match.duration", 60*time.Second)
	viper.SetDefault("match.pickups", m.Pickups)
	viper.SetDefault("match.spawnMin", []float64{m.SpawnMin[0], m.SpawnMin[1]})
	viper.SetDefault("match.spawnMax", []float64{m.SpawnMax[0], m.SpawnMax[1]})
	viper.SetDefault("match.spawnHeight", m.SpawnHeight)
	viper.SetDefault("match.minSeparation", m.MinSeparation)
	viper.SetDefault("match.spawnAttempts", m.SpawnAttempts)
	viper.SetDefault("match.triggerRadius", m.TriggerRadius)
	viper.SetDefault("match.pointsPerCapture", m.PointsPerCapture)
	viper.SetDefault("match.seed", 0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", 30*time.Second)
	viper.SetDefault("storage.sqlite.dumpPath", "./recordings/flightcore.db")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/ingest")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "flightcore")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "flightcore")
	viper.SetDefault("influx.bucket", "flight_telemetry")
	viper.SetDefault("influx.backupDir", "./influx_backup")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "flightcore")
	viper.SetDefault("otel.batchTimeout", 5*time.Second)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetDefault("geo.originLon", 0.0)
	viper.SetDefault("geo.originLat", 0.0)
	viper.SetDefault("geo.originAlt", 0.0)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.tag", "flightsim")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", time.Second)
	viper.SetDefault("monitor.statusFile", "./logs/status.json")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. An empty
// configDir loads the defaults only.
func Load(configDir string) error {
	setDefaults()
	if configDir == "" {
		return nil
	}

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func seconds(key string) float64 {
	return viper.GetDuration(key).Seconds()
}

// VehicleParams builds and validates the vehicle parameters.
func VehicleParams() (flight.Params, error) {
	mode, err := flight.ParseMode(viper.GetString("vehicle.flightMode"))
	if err != nil {
		return flight.Params{}, err
	}
	p := flight.Params{
		Mass:                 viper.GetFloat64("vehicle.mass"),
		UpwardForce:          viper.GetFloat64("vehicle.upwardForce"),
		DownwardForce:        viper.GetFloat64("vehicle.downwardForce"),
		SidewardForce:        viper.GetFloat64("vehicle.sidewardForce"),
		ForwardForce:         viper.GetFloat64("vehicle.forwardForce"),
		MaxSpeed:             viper.GetFloat64("vehicle.maxSpeed"),
		MaxYawSpeed:          viper.GetFloat64("vehicle.maxYawSpeed"),
		MaxRollTilt:          viper.GetFloat64("vehicle.maxRollTilt"),
		MaxPitchTilt:         viper.GetFloat64("vehicle.maxPitchTilt"),
		TiltSmoothTime:       viper.GetFloat64("vehicle.tiltSmoothTime"),
		SlowDownPositioning:  viper.GetFloat64("vehicle.slowDownPositioning"),
		SlowDownAttitude:     viper.GetFloat64("vehicle.slowDownAttitude"),
		SlowDownVertical:     viper.GetFloat64("vehicle.slowDownVertical"),
		HoverBand:            viper.GetFloat64("vehicle.hoverBand"),
		Mode:                 mode,
		EngineStartDelay:     seconds("vehicle.engineStartDelay"),
		ReturnAltitude:       viper.GetFloat64("returnHome.altitude"),
		ReturnSpeed:          viper.GetFloat64("returnHome.speed"),
		ReturnRotateDuration: seconds("returnHome.rotateDuration"),
		HomeOffset:           viper.GetFloat64("returnHome.homeOffset"),
		FloorHeight:          viper.GetFloat64("landing.floorHeight"),
		LandingDuration:      seconds("landing.duration"),
		LandingDelay:         seconds("landing.delay"),
		ProximityLanding:     viper.GetBool("landing.proximity"),
		SafeHeight:           viper.GetFloat64("landing.safeHeight"),
	}
	return p, p.Validate()
}

// PilotConfig builds and validates the autopilot tuning.
func PilotConfig() (autopilot.Config, error) {
	c := autopilot.Config{
		HoverHeight:      viper.GetFloat64("autopilot.hoverHeight"),
		Tolerance:        viper.GetFloat64("autopilot.tolerance"),
		ClimbGain:        viper.GetFloat64("autopilot.climbGain"),
		BaseThrottle:     viper.GetFloat64("autopilot.baseThrottle"),
		MaxThrottle:      viper.GetFloat64("autopilot.maxThrottle"),
		HoldGain:         viper.GetFloat64("autopilot.holdGain"),
		HoldDamping:      viper.GetFloat64("autopilot.holdDamping"),
		HoverPause:       seconds("autopilot.hoverPause"),
		PitchSensitivity: viper.GetFloat64("autopilot.pitchSensitivity"),
		RollSensitivity:  viper.GetFloat64("autopilot.rollSensitivity"),
		MaxPitch:         viper.GetFloat64("autopilot.maxPitch"),
		MaxRoll:          viper.GetFloat64("autopilot.maxRoll"),
		MaxYaw:           viper.GetFloat64("autopilot.maxYaw"),
		TurnTrimRate:     viper.GetFloat64("autopilot.turnTrimRate"),
		TargetRadius:     viper.GetFloat64("autopilot.targetRadius"),
		HomeRadius:       viper.GetFloat64("autopilot.homeRadius"),
		FleetLoop:        viper.GetBool("autopilot.fleetLoop"),
	}
	return c, c.Validate()
}

// MatchConfig builds and validates the match settings.
func MatchConfig() (match.Config, error) {
	lo, err := corner("match.spawnMin")
	if err != nil {
		return match.Config{}, err
	}
	hi, err := corner("match.spawnMax")
	if err != nil {
		return match.Config{}, err
	}
	c := match.Config{
		Duration:         seconds("match.duration"),
		Pickups:          viper.GetInt("match.pickups"),
		SpawnMin:         lo,
		SpawnMax:         hi,
		SpawnHeight:      viper.GetFloat64("match.spawnHeight"),
		MinSeparation:    viper.GetFloat64("match.minSeparation"),
		SpawnAttempts:    viper.GetInt("match.spawnAttempts"),
		TriggerRadius:    viper.GetFloat64("match.triggerRadius"),
		PointsPerCapture: viper.GetInt("match.pointsPerCapture"),
		Seed:             viper.GetUint64("match.seed"),
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c, c.Validate()
}

var errCorner = errors.New("expected [x, z]")

func corner(key string) ([2]float64, error) {
	var v []float64
	if err := viper.UnmarshalKey(key, &v); err != nil {
		return [2]float64{}, fmt.Errorf("%s: %w", key, err)
	}
	if len(v) != 2 {
		return [2]float64{}, fmt.Errorf("%s: %w, got %v", key, errCorner, v)
	}
	return [2]float64{v[0], v[1]}, nil
}

// SimConfig builds the world scheduler settings.
func SimConfig() (sim.Config, error) {
	c := sim.Config{
		MissionName:    viper.GetString("sim.missionName"),
		FixedRate:      viper.GetFloat64("sim.fixedRate"),
		Duration:       viper.GetDuration("sim.duration"),
		FleetSize:      viper.GetInt("sim.fleetSize"),
		AutoStartDelay: seconds("sim.autoStartDelay"),
		Realtime:       viper.GetBool("sim.realtime"),
		Autopilot:      viper.GetBool("autopilot.enabled"),
		ReturnHome:     viper.GetBool("sim.returnHome"),
	}
	return c, c.Validate()
}

// Memory returns the memory backend settings.
func Memory() MemoryConfig {
	return MemoryConfig{
		OutputDir:      viper.GetString("storage.memory.outputDir"),
		CompressOutput: viper.GetBool("storage.memory.compressOutput"),
	}
}

// SQLite returns the SQLite backend settings.
func SQLite() SQLiteConfig {
	return SQLiteConfig{
		DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
	}
}

// WebSocket returns the streaming backend settings.
func WebSocket() WebSocketConfig {
	return WebSocketConfig{
		URL:    viper.GetString("storage.websocket.url"),
		Secret: viper.GetString("storage.websocket.secret"),
	}
}

// DB returns the PostgreSQL connection settings.
func DB() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// Influx returns the InfluxDB settings.
func Influx() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// OTel returns the OpenTelemetry settings.
func OTel() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// Geo returns the geo-reference origin.
func Geo() GeoOrigin {
	return GeoOrigin{
		Lon: viper.GetFloat64("geo.originLon"),
		Lat: viper.GetFloat64("geo.originLat"),
		Alt: viper.GetFloat64("geo.originAlt"),
	}
}

// API returns the recording upload settings.
func API() APIConfig {
	return APIConfig{
		Enabled:   viper.GetBool("api.enabled"),
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Tag:       viper.GetString("api.tag"),
	}
}

// Monitor returns the status monitor settings.
func Monitor() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}
