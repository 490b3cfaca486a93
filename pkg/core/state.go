package core

// State is the operating mode of a vehicle.
type State uint8

const (
	StateOff State = iota
	StateStartingEngine
	StateReadyToFly
	StateFlying
	StateReturnHome
	StatePrepareAutoLanding
	StateAutoLanding
)

var stateNames = [...]string{
	StateOff:                "Off",
	StateStartingEngine:     "StartingEngine",
	StateReadyToFly:         "ReadyToFly",
	StateFlying:             "Flying",
	StateReturnHome:         "ReturnHome",
	StatePrepareAutoLanding: "PrepareAutoLanding",
	StateAutoLanding:        "AutoLanding",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Powered reports whether the engine is running.
func (s State) Powered() bool {
	return s != StateOff
}

// Stage is the plan step of the autonomous pilot.
type Stage uint8

const (
	StageOff Stage = iota
	StageClimbToHover
	StageHoverPause
	StageMoveToTarget
	StageBackHome
	StageSuccess
)

var stageNames = [...]string{
	StageOff:          "Off",
	StageClimbToHover: "ClimbToHover",
	StageHoverPause:   "HoverPause",
	StageMoveToTarget: "MoveToTarget",
	StageBackHome:     "BackHome",
	StageSuccess:      "Success",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Unknown"
}

// StateChange is emitted once per vehicle state transition.
type StateChange struct {
	VehicleID uint16
	Tick      uint
	From      State
	To        State
}

// ArrivalKind distinguishes pickup collection from delivery at home.
type ArrivalKind string

const (
	ArrivalCollected ArrivalKind = "collected"
	ArrivalScored    ArrivalKind = "scored"
)

// ArrivalEvent records a pilot reaching a pickup or its home point.
type ArrivalEvent struct {
	VehicleID uint16
	Tick      uint
	Kind      ArrivalKind
	PickupID  uint
	Position  Position3D
}
