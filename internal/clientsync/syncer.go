// Package clientsync keeps a client-side copy of a timetable's current week
// in step with the server. Toggles are shown optimistically and rolled back
// on failure; rollover is polled for in the background.
package clientsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

var (
	// ErrBusy indicates another toggle or refresh is in flight.
	ErrBusy = errors.New("another change is in flight")
	// ErrNotLoaded indicates the week has not been fetched yet.
	ErrNotLoaded = errors.New("week not loaded")
	// ErrStaleCommand indicates a command that is not the pending one.
	ErrStaleCommand = errors.New("command is not pending")
)

// Remote is the server surface used by a Syncer. *client.Client satisfies it.
type Remote interface {
	ActiveWeek(ctx context.Context, id string) (week.Record, error)
	Toggle(ctx context.Context, id, activityID string, dayIndex int) (week.Record, error)
	EvaluateRollover(ctx context.Context, id string) (*timetable.RolloverResult, error)
}

// Snapshot is what listeners see after every state change.
type Snapshot struct {
	TimetableID string
	Week        week.Record
	State       State
	Loaded      bool
	// Err is the failure that caused this snapshot, if any.
	Err error
	// Archived is set when this snapshot follows a rollover that archived a week.
	Archived *week.Record
}

// Listener receives snapshots. It is called without locks held.
type Listener func(Snapshot)

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(s *Syncer) { s.clock = clock }
}

// Syncer caches one timetable's current week.
type Syncer struct {
	remote      Remote
	timetableID string
	guard       *Guard
	logger      *slog.Logger
	clock       func() time.Time

	mu        sync.Mutex
	confirmed week.Record
	displayed week.Record
	loaded    bool
	pending   *ToggleCommand
	listeners map[int]Listener
	nextID    int
}

// New creates a Syncer for timetableID, which may be timetable.ActiveID.
func New(remote Remote, timetableID string, opts ...Option) *Syncer {
	s := &Syncer{
		remote:      remote,
		timetableID: timetableID,
		guard:       &Guard{},
		clock:       time.Now,
		listeners:   map[int]Listener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Subscribe registers l and returns a func that removes it.
func (s *Syncer) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Snapshot returns the current view.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(nil, nil)
}

// Load fetches the current week, replacing the cache.
func (s *Syncer) Load(ctx context.Context) error {
	if !s.guard.TryAcquire() {
		return ErrBusy
	}
	defer s.guard.Release()

	rec, err := s.remote.ActiveWeek(ctx, s.timetableID)
	if err != nil {
		s.publish(err, nil)
		return fmt.Errorf("loading week: %w", err)
	}
	s.replace(rec)
	s.publish(nil, nil)
	return nil
}

// Begin applies a toggle optimistically and returns the pending command.
// Bad activity or day references are rejected without touching the cache.
func (s *Syncer) Begin(activityID string, dayIndex int) (*ToggleCommand, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if !s.guard.TryAcquire() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	cmd := &ToggleCommand{Previous: s.displayed.Clone(), ActivityID: activityID, DayIndex: dayIndex}
	optimistic, err := cmd.Apply()
	if err != nil {
		s.guard.Release()
		s.mu.Unlock()
		return nil, err
	}
	s.displayed = optimistic
	s.pending = cmd
	s.mu.Unlock()

	s.publish(nil, nil)
	return cmd, nil
}

// Commit sends cmd to the server. On success the cache is replaced by the
// server's week; on failure the pre-toggle week is restored and the error
// returned. Either way the guard is released.
func (s *Syncer) Commit(ctx context.Context, cmd *ToggleCommand) (week.Record, error) {
	s.mu.Lock()
	if cmd == nil || s.pending != cmd {
		s.mu.Unlock()
		return week.Record{}, ErrStaleCommand
	}
	s.mu.Unlock()

	server, err := s.remote.Toggle(ctx, s.timetableID, cmd.ActivityID, cmd.DayIndex)

	s.mu.Lock()
	s.pending = nil
	if err != nil {
		s.displayed = cmd.Revert()
	} else {
		s.confirmed = cmd.Confirm(server)
		s.displayed = s.confirmed.Clone()
	}
	out := s.displayed.Clone()
	s.mu.Unlock()
	s.guard.Release()

	if err != nil {
		s.logger.Warn("toggle rejected, reverted", "timetable", s.timetableID, "activity", cmd.ActivityID, "day", cmd.DayIndex, "error", err)
		s.publish(err, nil)
		return out, err
	}
	s.publish(nil, nil)
	return out, nil
}

// Toggle is Begin followed by Commit.
func (s *Syncer) Toggle(ctx context.Context, activityID string, dayIndex int) (week.Record, error) {
	cmd, err := s.Begin(activityID, dayIndex)
	if err != nil {
		return week.Record{}, err
	}
	return s.Commit(ctx, cmd)
}

// CheckRollover asks the server to roll over once the cached week has
// ended. It does nothing while a change is in flight. The first call on an
// unloaded Syncer loads the week.
func (s *Syncer) CheckRollover(ctx context.Context) (bool, error) {
	s.mu.Lock()
	loaded := s.loaded
	expired := loaded && s.displayed.Expired(s.clock())
	s.mu.Unlock()

	if !loaded {
		err := s.Load(ctx)
		if errors.Is(err, ErrBusy) {
			return false, nil
		}
		return false, err
	}
	if !expired {
		return false, nil
	}
	if !s.guard.TryAcquire() {
		return false, nil
	}
	defer s.guard.Release()

	res, err := s.remote.EvaluateRollover(ctx, s.timetableID)
	if err != nil {
		return false, fmt.Errorf("evaluating rollover: %w", err)
	}
	s.replace(res.Week)
	s.publish(nil, res.Archived)
	return res.RolledOver, nil
}

// DefaultPollInterval is used by Poll when given a non-positive interval.
const DefaultPollInterval = time.Minute

// Poll checks for rollover immediately and then every interval until ctx
// is done. Failures are logged and retried on the next tick.
func (s *Syncer) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Warn("invalid poll interval, using default", "interval", interval, "default", DefaultPollInterval)
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if rolled, err := s.CheckRollover(ctx); err != nil {
			s.logger.Warn("rollover check failed", "timetable", s.timetableID, "error", err)
		} else if rolled {
			s.logger.Info("week rolled over", "timetable", s.timetableID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Syncer) replace(rec week.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = rec.Clone()
	s.displayed = rec.Clone()
	s.loaded = true
}

func (s *Syncer) publish(err error, archived *week.Record) {
	s.mu.Lock()
	snap := s.snapshotLocked(err, archived)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Syncer) snapshotLocked(err error, archived *week.Record) Snapshot {
	state := Idle
	if s.pending != nil {
		state = OptimisticPending
	}
	return Snapshot{
		TimetableID: s.timetableID,
		Week:        s.displayed.Clone(),
		State:       state,
		Loaded:      s.loaded,
		Err:         err,
		Archived:    archived,
	}
}
