package timetable

import (
	"context"

	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/week"
)

// Repository provides persistence for timetables.
type Repository interface {
	Create(ctx context.Context, userID string, t *Timetable) error
	Get(ctx context.Context, userID, id string) (*Timetable, error)
	GetActive(ctx context.Context, userID string) (*Timetable, error)
	List(ctx context.Context, userID string) ([]Summary, error)
	// Save writes the aggregate and appends t.Archived to history in one
	// transaction. With expectedVersion other than AnyVersion the write only
	// happens if the stored version matches. On success t.Version,
	// t.HistoryCount and t.UpdatedAt are refreshed and t.Archived is cleared.
	Save(ctx context.Context, userID string, t *Timetable, expectedVersion int64) error
	// History returns the selected archived weeks and the total count.
	History(ctx context.Context, userID, id string, opts HistoryOptions) ([]week.Record, int, error)
}

// ActivityLogger records audit entries. *activity.Service satisfies it.
type ActivityLogger interface {
	LogActivity(ctx context.Context, userID string, entry *activity.ActivityEntry) error
}

// EventPublisher delivers committed events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// StatsAggregator summarizes history. *stats.Aggregator satisfies it.
type StatsAggregator interface {
	Summarize(history []week.Record, current week.Record) stats.Summary
}

// Metrics observes service outcomes.
type Metrics interface {
	ObserveMutation(op string, err error)
	ObserveRollover(archived bool)
	ObserveConflict()
}
