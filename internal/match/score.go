package match

import (
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/flightcore/pkg/core"
)

// Draw is the winner reported when the top score is shared.
const Draw = "draw"

// End reasons reported in core.MatchResult.
const (
	ReasonTime      = "time"
	ReasonDestroyed = "destroyed"
	ReasonStopped   = "stopped"
)

// Scoreboard tallies points per vehicle. It may be read while the world
// is running.
type Scoreboard struct {
	mu     sync.RWMutex
	points int
	scores map[uint16]int
	names  map[uint16]string
}

func NewScoreboard(pointsPerCapture int) *Scoreboard {
	return &Scoreboard{
		points: pointsPerCapture,
		scores: make(map[uint16]int),
		names:  make(map[uint16]string),
	}
}

// Register adds a vehicle with zero points.
func (s *Scoreboard) Register(id uint16, callsign string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[id]; !ok {
		s.scores[id] = 0
	}
	s.names[id] = callsign
}

// Add credits one delivery and returns the new total.
func (s *Scoreboard) Add(id uint16) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[id] += s.points
	return s.scores[id]
}

func (s *Scoreboard) Score(id uint16) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[id]
}

// Scores returns a copy of all totals.
func (s *Scoreboard) Scores() map[uint16]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint16]int, len(s.scores))
	for id, v := range s.scores {
		out[id] = v
	}
	return out
}

// Winner returns the callsign of the leader, or Draw when the lead is
// shared or nobody is registered.
func (s *Scoreboard) Winner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint16, 0, len(s.scores))
	for id := range s.scores {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return Draw
	}
	sort.Slice(ids, func(i, j int) bool { return s.scores[ids[i]] > s.scores[ids[j]] })
	if len(ids) > 1 && s.scores[ids[0]] == s.scores[ids[1]] {
		return Draw
	}
	return s.names[ids[0]]
}

// Result builds the final tally.
func (s *Scoreboard) Result(tick uint, elapsed time.Duration, reason string) core.MatchResult {
	return core.MatchResult{
		Time:    time.Now(),
		Tick:    tick,
		Winner:  s.Winner(),
		Scores:  s.Scores(),
		Reason:  reason,
		Elapsed: elapsed,
	}
}

// Clock counts the match time down.
type Clock struct {
	remaining float64
}

func NewClock(duration float64) *Clock { return &Clock{remaining: duration} }

// Advance subtracts dt, stopping at zero.
func (c *Clock) Advance(dt float64) {
	c.remaining -= dt
	if c.remaining < 0 {
		c.remaining = 0
	}
}

func (c *Clock) Remaining() float64 { return c.remaining }

func (c *Clock) Ended() bool { return c.remaining <= 0 }

// Health is the combat status of one vehicle.
type Health struct {
	destroyed bool
}

// Destroy marks the vehicle as lost.
func (h *Health) Destroy() { h.destroyed = true }

func (h *Health) Destroyed() bool { return h.destroyed }

// Referee decides when the match is over: the clock ran out or every
// tracked vehicle is destroyed.
type Referee struct {
	clock  *Clock
	health []*Health
}

func NewReferee(clock *Clock) *Referee { return &Referee{clock: clock} }

// Track adds a vehicle's health to the destroyed check.
func (r *Referee) Track(h *Health) { r.health = append(r.health, h) }

// Ended implements autopilot.Match.
func (r *Referee) Ended() bool { return r.Reason() != "" }

// Reason returns why the match ended, or "" while it is running.
func (r *Referee) Reason() string {
	if r.clock != nil && r.clock.Ended() {
		return ReasonTime
	}
	if len(r.health) == 0 {
		return ""
	}
	for _, h := range r.health {
		if !h.Destroyed() {
			return ""
		}
	}
	return ReasonDestroyed
}
