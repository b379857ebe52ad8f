package timetable

import (
	"time"

	"github.com/rpggio/weekly/internal/domain/week"
)

// ActiveID is the timetable id alias that resolves to the user's active timetable.
const ActiveID = "active"

// AnyVersion makes Save skip the version check.
const AnyVersion int64 = -1

// Timetable is the aggregate: one current week, an append-only history of
// closed weeks and the definitions that seed each new week.
type Timetable struct {
	ID                string                    `json:"id"`
	UserID            string                    `json:"user_id"`
	Name              string                    `json:"name"`
	Description       string                    `json:"description,omitempty"`
	IsActive          bool                      `json:"is_active"`
	CurrentWeek       week.Record               `json:"current_week"`
	DefaultActivities []week.ActivityDefinition `json:"default_activities"`
	HistoryCount      int                       `json:"history_count"`
	Version           int64                     `json:"version"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`

	// Archived holds weeks closed since the aggregate was loaded. Save
	// appends them to history in the same write and clears the slice.
	Archived []week.Record `json:"-"`
}

// Summary is a lightweight representation for listing
type Summary struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description,omitempty"`
	IsActive              bool      `json:"is_active"`
	ActivityCount         int       `json:"activity_count"`
	HistoryCount          int       `json:"history_count"`
	CurrentWeekStart      time.Time `json:"current_week_start"`
	OverallCompletionRate float64   `json:"overall_completion_rate"`
	Version               int64     `json:"version"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Summarize builds the listing view of t.
func (t *Timetable) Summarize() Summary {
	return Summary{
		ID:                    t.ID,
		Name:                  t.Name,
		Description:           t.Description,
		IsActive:              t.IsActive,
		ActivityCount:         len(t.DefaultActivities),
		HistoryCount:          t.HistoryCount,
		CurrentWeekStart:      t.CurrentWeek.WeekStartDate,
		OverallCompletionRate: t.CurrentWeek.OverallCompletionRate,
		Version:               t.Version,
		UpdatedAt:             t.UpdatedAt,
	}
}

// HistoryOrder selects the order history pages are returned in.
type HistoryOrder string

const (
	NewestFirst HistoryOrder = "newest_first"
	OldestFirst HistoryOrder = "oldest_first"
)

// Valid reports whether o is a known order.
func (o HistoryOrder) Valid() bool {
	return o == NewestFirst || o == OldestFirst
}

// HistoryOptions selects a slice of the archived weeks.
// A zero Limit returns everything from Offset on.
type HistoryOptions struct {
	Offset      int
	Limit       int
	NewestFirst bool
}

// HistoryPage is one page of archived weeks.
type HistoryPage struct {
	Weeks    []week.Record `json:"weeks"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
	Order    HistoryOrder  `json:"order"`
}

// ConcurrencyMode selects how concurrent writers to one aggregate interact.
type ConcurrencyMode string

const (
	// LastWriteWins saves unconditionally. A concurrent write to another cell
	// can be overwritten.
	LastWriteWins ConcurrencyMode = "last_write_wins"
	// CompareAndSwap saves only if the version is unchanged since the read,
	// re-reading and re-applying the change on conflict.
	CompareAndSwap ConcurrencyMode = "compare_and_swap"
)

// Valid reports whether m is a known mode.
func (m ConcurrencyMode) Valid() bool {
	return m == LastWriteWins || m == CompareAndSwap
}

// EventType names a domain event.
type EventType string

const (
	EventTimetableCreated   EventType = "timetable.created"
	EventCellToggled        EventType = "week.cell_toggled"
	EventNotesUpdated       EventType = "week.notes_updated"
	EventWeekRolledOver     EventType = "week.rolled_over"
	EventActivitiesReplaced EventType = "timetable.activities_replaced"
)

// Event describes a committed change to an aggregate.
type Event struct {
	ID              string         `json:"id"`
	Type            EventType      `json:"type"`
	TimetableID     string         `json:"timetable_id"`
	UserID          string         `json:"user_id"`
	ClientSessionID string         `json:"client_session_id,omitempty"`
	WeekStart       time.Time      `json:"week_start"`
	Version         int64          `json:"version"`
	OccurredAt      time.Time      `json:"occurred_at"`
	Summary         string         `json:"summary"`
	Payload         map[string]any `json:"payload,omitempty"`
}
