// Package model holds the GORM tables flight recordings are written to.
package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Mission{},
	&Vehicle{},
	&VehicleState{},
	&StateChange{},
	&ArrivalEvent{},
	&MatchResult{},
}

// Mission is one recorded simulation run
type Mission struct {
	gorm.Model
	MissionName string         `json:"missionName" gorm:"size:200"`
	StartTime   time.Time      `json:"missionStart" gorm:"index:idx_mission_start"`
	FixedRate   float32        `json:"fixedRate"`
	FleetSize   uint16         `json:"fleetSize"`
	FleetLoop   bool           `json:"fleetLoop"`
	Seed        int64          `json:"seed"`
	Parameters  datatypes.JSON `json:"parameters"`

	Vehicles []Vehicle `gorm:"foreignkey:MissionID"`
}

func (*Mission) TableName() string {
	return "missions"
}

// Vehicle is a quadcopter registered with a mission.
// Uses composite primary key (MissionID, ObjectID).
type Vehicle struct {
	MissionID uint       `json:"missionId" gorm:"primaryKey;autoIncrement:false"`
	ObjectID  uint16     `json:"vehicleId" gorm:"primaryKey;autoIncrement:false"`
	Mission   Mission    `gorm:"foreignkey:MissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	JoinTime  time.Time  `json:"joinTime" gorm:"NOT NULL;index:idx_vehicle_join_time"`
	Callsign  string     `json:"callsign" gorm:"size:64"`
	Home      geom.Point `json:"home"`
	HomeYaw   float32    `json:"homeYaw"`
	Autopilot bool       `json:"autopilot"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// VehicleState is one fixed step of one vehicle.
// References Vehicle by (MissionID, VehicleObjectID) composite FK
type VehicleState struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time            time.Time `json:"time"`
	MissionID       uint      `json:"missionId" gorm:"index:idx_vehiclestate_mission_id"`
	Tick            uint      `json:"tick" gorm:"index:idx_vehiclestate_tick"`
	VehicleObjectID uint16    `json:"vehicleId" gorm:"index:idx_vehiclestate_vehicle_id"`
	Vehicle         Vehicle   `gorm:"foreignkey:MissionID,VehicleObjectID;references:MissionID,ObjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	Position geom.Point                     `json:"position"` // EPSG:3857, Z is altitude
	Local    datatypes.JSONType[LocalFrame] `json:"local"`

	Speed     float32 `json:"speed"`
	Yaw       float32 `json:"yaw"`
	PitchTilt float32 `json:"pitchTilt"`
	RollTilt  float32 `json:"rollTilt"`
	UpForce   float32 `json:"upForce"`
	State     string  `json:"state" gorm:"size:32"`
	Stage     string  `json:"stage" gorm:"size:32"`
	Pitch     float32 `json:"pitch"`
	Roll      float32 `json:"roll"`
	YawInput  float32 `json:"yawInput"`
	Throttle  float32 `json:"throttle"`
	Scripted  bool    `json:"scripted"`
}

func (*VehicleState) TableName() string {
	return "vehicle_states"
}

// LocalFrame keeps the simulation-frame position and velocity next to the
// projected point.
type LocalFrame struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
}

// StateChange is one vehicle state machine transition.
type StateChange struct {
	ID              uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	MissionID       uint   `json:"missionId" gorm:"index:idx_statechange_mission_id"`
	Tick            uint   `json:"tick"`
	VehicleObjectID uint16 `json:"vehicleId"`
	FromState       string `json:"from" gorm:"size:32"`
	ToState         string `json:"to" gorm:"size:32"`
}

func (*StateChange) TableName() string {
	return "state_changes"
}

// ArrivalEvent is a pickup collection or a delivery at home.
type ArrivalEvent struct {
	ID              uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	MissionID       uint       `json:"missionId" gorm:"index:idx_arrival_mission_id"`
	Tick            uint       `json:"tick"`
	VehicleObjectID uint16     `json:"vehicleId"`
	Kind            string     `json:"kind" gorm:"size:16"`
	PickupID        uint       `json:"pickupId"`
	Position        geom.Point `json:"position"`
}

func (*ArrivalEvent) TableName() string {
	return "arrival_events"
}

// MatchResult is the final tally of a mission.
type MatchResult struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	MissionID uint           `json:"missionId" gorm:"uniqueIndex"`
	Time      time.Time      `json:"time"`
	Tick      uint           `json:"tick"`
	Winner    string         `json:"winner" gorm:"size:64"`
	Reason    string         `json:"reason" gorm:"size:32"`
	ElapsedMs int64          `json:"elapsedMs"`
	Scores    datatypes.JSON `json:"scores"`
}

func (*MatchResult) TableName() string {
	return "match_results"
}
