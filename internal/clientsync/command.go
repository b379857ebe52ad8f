package clientsync

import (
	"sync"

	"github.com/rpggio/weekly/internal/domain/week"
)

// State is the lifecycle of a cached week.
type State int

const (
	// Idle means the displayed week equals the last confirmed week.
	Idle State = iota
	// OptimisticPending means a change is shown but not yet confirmed.
	OptimisticPending
)

func (s State) String() string {
	if s == OptimisticPending {
		return "optimistic_pending"
	}
	return "idle"
}

// Guard is the single-flight token of one timetable. At most one toggle or
// rollover refresh holds it at a time.
type Guard struct {
	mu    sync.Mutex
	state State
}

// TryAcquire moves the guard to OptimisticPending. It reports false when
// the guard is already held.
func (g *Guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Idle {
		return false
	}
	g.state = OptimisticPending
	return true
}

// Release returns the guard to Idle.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Idle
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ToggleCommand captures one optimistic toggle so it can be applied,
// confirmed by the server or reverted.
type ToggleCommand struct {
	Previous   week.Record
	ActivityID string
	DayIndex   int
}

// Apply returns the optimistic week. Previous is left untouched.
func (c *ToggleCommand) Apply() (week.Record, error) {
	return c.Previous.Toggle(c.ActivityID, c.DayIndex)
}

// Confirm returns the week to cache once the server accepted the change.
// The server's rates win over the local recomputation.
func (c *ToggleCommand) Confirm(server week.Record) week.Record {
	return server.Clone()
}

// Revert returns the week to show after the change failed.
func (c *ToggleCommand) Revert() week.Record {
	return c.Previous.Clone()
}
