package timetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/rpggio/weekly/internal/repository"
)

// MaxNotesLength bounds the notes attached to a week, in runes.
const MaxNotesLength = 4000

const (
	opRead     = "read"
	opCreate   = "create"
	opToggle   = "toggle"
	opNotes    = "notes"
	opRollover = "rollover"
	opReplace  = "replace_activities"
)

// Options configures the service.
type Options struct {
	Location        *time.Location
	RolloverOnRead  bool
	Concurrency     ConcurrencyMode
	MaxRetries      int
	HistoryOrder    HistoryOrder
	DefaultPageSize int
	MaxPageSize     int
	Clock           func() time.Time
	Metrics         Metrics
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Location:        time.Local,
		RolloverOnRead:  true,
		Concurrency:     LastWriteWins,
		MaxRetries:      3,
		HistoryOrder:    NewestFirst,
		DefaultPageSize: 10,
		MaxPageSize:     100,
		Clock:           time.Now,
	}
}

// Service handles timetable operations.
type Service struct {
	repo       Repository
	activities ActivityLogger
	publisher  EventPublisher
	aggregator StatsAggregator
	logger     *slog.Logger
	opts       Options
}

// NewService creates a new timetable service. activities, publisher and
// aggregator may be nil.
func NewService(repo Repository, activities ActivityLogger, publisher EventPublisher, aggregator StatsAggregator, logger *slog.Logger, opts Options) *Service {
	def := DefaultOptions()
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if !opts.Concurrency.Valid() {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if !opts.HistoryOrder.Valid() {
		opts.HistoryOrder = def.HistoryOrder
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = def.DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = def.MaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if aggregator == nil {
		aggregator = stats.NewAggregator()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:       repo,
		activities: activities,
		publisher:  publisher,
		aggregator: aggregator,
		logger:     logger,
		opts:       opts,
	}
}

// CreateRequest defines timetable creation inputs.
type CreateRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	IsActive    bool                      `json:"is_active"`
	Activities  []week.ActivityDefinition `json:"activities"`
}

// Create creates a timetable and seeds its first week around the current instant.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Timetable, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	defs, err := week.NormalizeDefinitions(req.Activities)
	if err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	t := &Timetable{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              name,
		Description:       strings.TrimSpace(req.Description),
		IsActive:          req.IsActive,
		CurrentWeek:       week.New(now, s.opts.Location, defs),
		DefaultActivities: defs,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.repo.Create(ctx, userID, t)
	s.opts.Metrics.ObserveMutation(opCreate, err)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("creating timetable: %w", err)
	}

	s.committed(ctx, t, []Event{s.event(ctx, t, EventTimetableCreated, now,
		fmt.Sprintf("created timetable %q with %d activities", t.Name, len(defs)),
		map[string]any{"activity_count": len(defs), "is_active": t.IsActive})})
	return t, nil
}

// Get fetches a timetable, rolling its week over first when configured to.
func (s *Service) Get(ctx context.Context, userID, id string) (*Timetable, error) {
	t, _, err := s.mutate(ctx, userID, id, opRead, nil)
	return t, err
}

// List returns timetable summaries.
func (s *Service) List(ctx context.Context, userID string) ([]Summary, error) {
	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing timetables: %w", err)
	}
	return list, nil
}

// ActiveWeek returns the current week of the timetable.
func (s *Service) ActiveWeek(ctx context.Context, userID, id string) (week.Record, error) {
	t, _, err := s.mutate(ctx, userID, id, opRead, nil)
	if err != nil {
		return week.Record{}, err
	}
	return t.CurrentWeek, nil
}

// ToggleCell flips one (activity, day) mark in the current week. The
// activity is matched by id, then by exact name.
func (s *Service) ToggleCell(ctx context.Context, userID, id, activityRef string, dayIndex int) (week.Record, error) {
	if err := week.CheckDay(dayIndex); err != nil {
		return week.Record{}, err
	}
	t, _, err := s.mutate(ctx, userID, id, opToggle, func(t *Timetable, now time.Time) ([]Event, error) {
		i, err := t.CurrentWeek.Find(activityRef)
		if err != nil {
			return nil, err
		}
		next, err := t.CurrentWeek.Toggle(activityRef, dayIndex)
		if err != nil {
			return nil, err
		}
		t.CurrentWeek = next

		p := next.Activities[i]
		done := p.DailyStatus[dayIndex]
		verb := "unmarked"
		if done {
			verb = "marked"
		}
		return []Event{s.event(ctx, t, EventCellToggled, now,
			fmt.Sprintf("%s %s on %s", verb, p.Activity.Name, week.DayName(dayIndex)),
			map[string]any{
				"activity_id":             p.Activity.ID,
				"activity_name":           p.Activity.Name,
				"day_index":               dayIndex,
				"done":                    done,
				"completion_rate":         p.CompletionRate,
				"overall_completion_rate": next.OverallCompletionRate,
			})}, nil
	})
	if err != nil {
		return week.Record{}, err
	}
	return t.CurrentWeek, nil
}

// UpdateNotes replaces the free-text notes of the current week.
func (s *Service) UpdateNotes(ctx context.Context, userID, id, notes string) (week.Record, error) {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return week.Record{}, fmt.Errorf("%w: notes exceed %d characters", ErrInvalidInput, MaxNotesLength)
	}
	t, _, err := s.mutate(ctx, userID, id, opNotes, func(t *Timetable, now time.Time) ([]Event, error) {
		if t.CurrentWeek.Notes == notes {
			return nil, nil
		}
		t.CurrentWeek = t.CurrentWeek.WithNotes(notes)
		return []Event{s.event(ctx, t, EventNotesUpdated, now, "updated week notes",
			map[string]any{"length": utf8.RuneCountInString(notes)})}, nil
	})
	if err != nil {
		return week.Record{}, err
	}
	return t.CurrentWeek, nil
}

// RolloverResult reports the outcome of an explicit rollover evaluation.
type RolloverResult struct {
	Week       week.Record  `json:"week"`
	RolledOver bool         `json:"rolled_over"`
	Archived   *week.Record `json:"archived,omitempty"`
}

// EvaluateRollover rolls the current week over if it has expired. It is
// idempotent and safe to retry.
func (s *Service) EvaluateRollover(ctx context.Context, userID, id string) (*RolloverResult, error) {
	var archived *week.Record
	t, events, err := s.mutate(ctx, userID, id, opRollover, func(t *Timetable, _ time.Time) ([]Event, error) {
		archived = nil
		if n := len(t.Archived); n > 0 {
			last := t.Archived[n-1]
			archived = &last
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	res := &RolloverResult{Week: t.CurrentWeek, Archived: archived}
	for _, ev := range events {
		if ev.Type == EventWeekRolledOver {
			res.RolledOver = true
		}
	}
	return res, nil
}

// ReplaceActivities sets the definitions that seed future weeks. The current
// week and history keep their own copies.
func (s *Service) ReplaceActivities(ctx context.Context, userID, id string, defs []week.ActivityDefinition) ([]week.ActivityDefinition, error) {
	normalized, err := week.NormalizeDefinitions(defs)
	if err != nil {
		return nil, err
	}
	t, _, err := s.mutate(ctx, userID, id, opReplace, func(t *Timetable, now time.Time) ([]Event, error) {
		names := make([]string, 0, len(normalized))
		for _, d := range normalized {
			names = append(names, d.Name)
		}
		t.DefaultActivities = normalized
		return []Event{s.event(ctx, t, EventActivitiesReplaced, now,
			fmt.Sprintf("replaced activities with %d definitions", len(normalized)),
			map[string]any{"activity_names": names})}, nil
	})
	if err != nil {
		return nil, err
	}
	return t.DefaultActivities, nil
}

// HistoryRequest selects a page of archived weeks. Page is 1-based.
type HistoryRequest struct {
	Page     int
	PageSize int
	Order    HistoryOrder
}

// History returns one page of archived weeks.
func (s *Service) History(ctx context.Context, userID, id string, req HistoryRequest) (*HistoryPage, error) {
	order := req.Order
	if order == "" {
		order = s.opts.HistoryOrder
	}
	if !order.Valid() {
		return nil, fmt.Errorf("%w: unknown history order %q", ErrInvalidInput, order)
	}
	if req.Page < 0 || req.PageSize < 0 {
		return nil, fmt.Errorf("%w: negative page or page size", ErrInvalidInput)
	}
	page := max(req.Page, 1)
	size := req.PageSize
	if size == 0 {
		size = s.opts.DefaultPageSize
	}
	size = min(size, s.opts.MaxPageSize)
	if size > 0 && page-1 > math.MaxInt/size {
		return nil, fmt.Errorf("%w: page %d out of range", ErrInvalidInput, page)
	}

	t, _, err := s.mutate(ctx, userID, id, opRead, nil)
	if err != nil {
		return nil, err
	}
	weeks, total, err := s.repo.History(ctx, userID, t.ID, HistoryOptions{
		Offset:      (page - 1) * size,
		Limit:       size,
		NewestFirst: order == NewestFirst,
	})
	if err != nil {
		return nil, s.translate(err, "reading history")
	}
	if weeks == nil {
		weeks = []week.Record{}
	}
	return &HistoryPage{Weeks: weeks, Page: page, PageSize: size, Total: total, Order: order}, nil
}

// Stats summarizes the archived weeks and the current week.
func (s *Service) Stats(ctx context.Context, userID, id string) (*stats.Summary, error) {
	t, _, err := s.mutate(ctx, userID, id, opRead, nil)
	if err != nil {
		return nil, err
	}
	history, _, err := s.repo.History(ctx, userID, t.ID, HistoryOptions{})
	if err != nil {
		return nil, s.translate(err, "reading history")
	}
	sum := s.aggregator.Summarize(history, t.CurrentWeek)
	return &sum, nil
}

// changeFunc applies a mutation to a loaded aggregate and returns the events
// it produced. A nil slice means nothing changed.
type changeFunc func(t *Timetable, now time.Time) ([]Event, error)

// mutate loads the aggregate, rolls it over when due, applies fn and saves
// the result as a single write. Under CompareAndSwap a lost race re-reads the
// aggregate and re-applies fn.
func (s *Service) mutate(ctx context.Context, userID, id, op string, fn changeFunc) (*Timetable, []Event, error) {
	attempts := 1
	if s.opts.Concurrency == CompareAndSwap {
		attempts += s.opts.MaxRetries
	}

	for attempt := 1; ; attempt++ {
		t, err := s.resolve(ctx, userID, id)
		if err != nil {
			return nil, nil, err
		}
		now := s.opts.Clock()

		var events []Event
		if op == opRollover || s.opts.RolloverOnRead {
			events = append(events, s.roll(ctx, t, now)...)
		}
		if fn != nil {
			more, err := fn(t, now)
			if err != nil {
				s.opts.Metrics.ObserveMutation(op, err)
				return nil, nil, err
			}
			events = append(events, more...)
		}
		if len(events) == 0 {
			return t, nil, nil
		}

		expected := AnyVersion
		if s.opts.Concurrency == CompareAndSwap {
			expected = t.Version
		}
		err = s.repo.Save(ctx, userID, t, expected)
		if err == nil {
			s.opts.Metrics.ObserveMutation(op, nil)
			s.committed(ctx, t, events)
			return t, events, nil
		}
		if errors.Is(err, repository.ErrConflict) {
			s.opts.Metrics.ObserveConflict()
			if attempt < attempts {
				s.logger.Debug("timetable version conflict, retrying",
					"timetable_id", t.ID, "op", op, "attempt", attempt)
				continue
			}
			s.opts.Metrics.ObserveMutation(op, ErrConflict)
			return nil, nil, ErrConflict
		}
		err = s.translate(err, "saving timetable")
		s.opts.Metrics.ObserveMutation(op, err)
		return nil, nil, err
	}
}

// roll runs the rollover engine and describes the result as events.
func (s *Service) roll(ctx context.Context, t *Timetable, now time.Time) []Event {
	before := len(t.Archived)
	prev := t.CurrentWeek
	if !EvaluateAndRoll(t, now, s.opts.Location) {
		return nil
	}
	archived := len(t.Archived) > before
	s.opts.Metrics.ObserveRollover(archived)

	payload := map[string]any{
		"previous_week_start":     prev.WeekStartDate,
		"previous_completion":     prev.OverallCompletionRate,
		"archived":                archived,
		"new_week_start":          t.CurrentWeek.WeekStartDate,
		"new_week_end":            t.CurrentWeek.WeekEndDate,
		"new_week_activity_count": len(t.CurrentWeek.Activities),
	}
	summary := fmt.Sprintf("rolled over to week of %s", t.CurrentWeek.WeekStartDate.Format(time.DateOnly))
	return []Event{s.event(ctx, t, EventWeekRolledOver, now, summary, payload)}
}

func (s *Service) resolve(ctx context.Context, userID, id string) (*Timetable, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: timetable id required", ErrInvalidInput)
	}
	if id == ActiveID {
		t, err := s.repo.GetActive(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNoActiveTimetable
			}
			return nil, fmt.Errorf("getting active timetable: %w", err)
		}
		return t, nil
	}
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, s.translate(err, "getting timetable")
	}
	return t, nil
}

func (s *Service) translate(err error, doing string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrTimetableNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrNameTaken
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", doing, err)
}

func (s *Service) event(ctx context.Context, t *Timetable, typ EventType, now time.Time, summary string, payload map[string]any) Event {
	ev := Event{
		ID:          uuid.NewString(),
		Type:        typ,
		TimetableID: t.ID,
		UserID:      t.UserID,
		WeekStart:   t.CurrentWeek.WeekStartDate,
		OccurredAt:  now,
		Summary:     summary,
		Payload:     payload,
	}
	if sid, ok := activity.ClientSessionFromContext(ctx); ok {
		ev.ClientSessionID = sid
	}
	return ev
}

var activityTypes = map[EventType]activity.ActivityType{
	EventTimetableCreated:   activity.TypeTimetableCreated,
	EventCellToggled:        activity.TypeCellToggled,
	EventNotesUpdated:       activity.TypeNotesUpdated,
	EventWeekRolledOver:     activity.TypeWeekRolledOver,
	EventActivitiesReplaced: activity.TypeActivitiesReplaced,
}

// committed runs after a successful write. The audit log and event delivery
// are best effort: the aggregate is already saved, so failures are logged.
func (s *Service) committed(ctx context.Context, t *Timetable, events []Event) {
	for i := range events {
		events[i].Version = t.Version
	}

	if s.activities != nil {
		for _, ev := range events {
			details, _ := json.Marshal(ev.Payload)
			entry := &activity.ActivityEntry{
				TimetableID:  ev.TimetableID,
				ActivityType: activityTypes[ev.Type],
				Summary:      ev.Summary,
				Details:      string(details),
				WeekStart:    ev.WeekStart,
				Version:      ev.Version,
				CreatedAt:    ev.OccurredAt,
			}
			if err := s.activities.LogActivity(ctx, t.UserID, entry); err != nil {
				s.logger.Warn("failed to log activity", "timetable_id", t.ID, "type", ev.Type, "error", err)
			}
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("failed to publish events", "timetable_id", t.ID, "count", len(events), "error", err)
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveMutation(string, error) {}
func (nopMetrics) ObserveRollover(bool)          {}
func (nopMetrics) ObserveConflict()              {}
