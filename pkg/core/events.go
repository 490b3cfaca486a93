// pkg/core/events.go
package core

// Dispatcher commands carrying recorded data. Payloads are the
// matching core types.
const (
	CmdStartMission = ":MISSION:START:"
	CmdEndMission   = ":MISSION:END:"
	CmdNewVehicle   = ":NEW:VEHICLE:"
	CmdVehicleState = ":NEW:VEHICLE:STATE:"
	CmdStateChanged = ":STATE:CHANGED:"
	CmdArrival      = ":EVENT:ARRIVAL:"
	CmdMatchResult  = ":MATCH:RESULT:"
)
