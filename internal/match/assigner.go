package match

import (
	"log/slog"
	"slices"

	"github.com/OCAP2/flightcore/internal/autopilot"
)

// Assigner hands each pilot the nearest pickup no other pilot is after.
// It is the autopilot.Notifier of every pilot it tracks.
type Assigner struct {
	field  *Field
	score  *Scoreboard
	logger *slog.Logger

	pilots   []*autopilot.Pilot
	assigned map[*autopilot.Pilot]uint
}

var _ autopilot.Notifier = (*Assigner)(nil)

// NewAssigner creates an assigner over field. score may be nil.
func NewAssigner(field *Field, score *Scoreboard, logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{
		field:    field,
		score:    score,
		logger:   logger,
		assigned: make(map[*autopilot.Pilot]uint),
	}
}

// Track registers a pilot, installs the assigner as its notifier and gives
// it a fresh target. Tracking a pilot again only reassigns it.
func (a *Assigner) Track(p *autopilot.Pilot) {
	if !slices.Contains(a.pilots, p) {
		a.pilots = append(a.pilots, p)
	}
	p.SetNotifier(a)
	delete(a.assigned, p)
	a.assign(p)
}

// Untrack stops assigning targets to p and frees its pickup for the other
// pilots. Track registers it again.
func (a *Assigner) Untrack(p *autopilot.Pilot) {
	a.pilots = slices.DeleteFunc(a.pilots, func(other *autopilot.Pilot) bool { return other == p })
	a.release(p)
	a.assignIdle(p)
}

// Assignment returns the pickup currently assigned to p. Finished pilots
// hold none.
func (a *Assigner) Assignment(p *autopilot.Pilot) (uint, bool) {
	if p.Finished() {
		return 0, false
	}
	id, ok := a.assigned[p]
	return id, ok
}

// release drops the assignment of p and its target.
func (a *Assigner) release(p *autopilot.Pilot) {
	delete(a.assigned, p)
	p.ClearTarget()
}

// prune releases the pickups held by finished pilots.
func (a *Assigner) prune() {
	for p := range a.assigned {
		if p.Finished() {
			a.release(p)
		}
	}
}

// Collected implements autopilot.Notifier.
func (a *Assigner) Collected(p *autopilot.Pilot, pickupID uint) {
	delete(a.assigned, p)
	var owner *autopilot.Pilot
	for other, id := range a.assigned {
		if id == pickupID {
			owner = other
		}
	}
	if owner != nil {
		delete(a.assigned, owner)
	}

	replacement, ok := a.field.Collect(pickupID)
	if ok {
		a.logger.Debug("pickup respawned", "pickup", replacement.ID, "x", replacement.Position.X(), "z", replacement.Position.Z())
	}
	if owner != nil {
		a.assign(owner)
	}
	a.assignIdle(p)
}

// Scored implements autopilot.Notifier.
func (a *Assigner) Scored(p *autopilot.Pilot, pickupID uint) {
	if a.score != nil {
		total := a.score.Add(p.ID())
		a.logger.Info("delivery scored", "vehicle", p.ID(), "pickup", pickupID, "score", total)
	}
	if p.Finished() {
		a.release(p)
		a.assignIdle(p)
		return
	}
	a.assign(p)
}

// assignIdle gives a target to every pilot that is waiting for one,
// except the one carrying a pickup home.
func (a *Assigner) assignIdle(except *autopilot.Pilot) {
	for _, p := range a.pilots {
		if p == except || p.Finished() {
			continue
		}
		if _, ok := a.assigned[p]; ok {
			continue
		}
		if _, carrying := p.Carrying(); carrying {
			continue
		}
		a.assign(p)
	}
}

func (a *Assigner) assign(p *autopilot.Pilot) {
	a.prune()
	if p.Finished() {
		a.release(p)
		return
	}
	taken := func(id uint) bool {
		for other, assigned := range a.assigned {
			if other != p && assigned == id {
				return true
			}
		}
		return false
	}
	pickup, ok := a.field.Nearest(p.Position(), taken)
	if !ok {
		delete(a.assigned, p)
		p.ClearTarget()
		return
	}
	a.assigned[p] = pickup.ID
	p.SetTarget(pickup.Position)
}
