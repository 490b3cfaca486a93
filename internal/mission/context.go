// Package mission tracks the mission currently being recorded.
package mission

import (
	"sync"
	"sync/atomic"

	"github.com/OCAP2/flightcore/pkg/core"
)

// NoMission is the name reported while nothing is recorded.
const NoMission = "No mission loaded"

// Context holds the current mission and the last tick seen for it.
type Context struct {
	mu      sync.RWMutex
	mission *core.Mission
	tick    atomic.Uint64
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{}
}

// Mission returns the current mission, or nil.
func (mc *Context) Mission() *core.Mission {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.mission
}

// Name returns the current mission name, or NoMission.
func (mc *Context) Name() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.mission == nil {
		return NoMission
	}
	return mc.mission.Name
}

// Active reports whether a mission is set.
func (mc *Context) Active() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.mission != nil
}

// SetMission sets the current mission and resets the tick.
func (mc *Context) SetMission(m *core.Mission) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.mission = m
	mc.tick.Store(0)
}

// Clear forgets the current mission.
func (mc *Context) Clear() {
	mc.SetMission(nil)
}

// ObserveTick records t if it is later than the last tick seen.
func (mc *Context) ObserveTick(t uint) {
	for {
		cur := mc.tick.Load()
		if uint64(t) <= cur || mc.tick.CompareAndSwap(cur, uint64(t)) {
			return
		}
	}
}

// Tick returns the latest tick observed for the mission.
func (mc *Context) Tick() uint {
	return uint(mc.tick.Load())
}
