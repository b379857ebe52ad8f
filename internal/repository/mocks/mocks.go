package mocks

import (
	"context"

	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/stretchr/testify/mock"
)

// TimetableRepository is a mock for timetable.Repository.
type TimetableRepository struct {
	mock.Mock
}

func (m *TimetableRepository) Create(ctx context.Context, userID string, t *timetable.Timetable) error {
	args := m.Called(ctx, userID, t)
	return args.Error(0)
}

func (m *TimetableRepository) Get(ctx context.Context, userID, id string) (*timetable.Timetable, error) {
	args := m.Called(ctx, userID, id)
	if t, ok := args.Get(0).(*timetable.Timetable); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimetableRepository) GetActive(ctx context.Context, userID string) (*timetable.Timetable, error) {
	args := m.Called(ctx, userID)
	if t, ok := args.Get(0).(*timetable.Timetable); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimetableRepository) List(ctx context.Context, userID string) ([]timetable.Summary, error) {
	args := m.Called(ctx, userID)
	if list, ok := args.Get(0).([]timetable.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimetableRepository) Save(ctx context.Context, userID string, t *timetable.Timetable, expectedVersion int64) error {
	args := m.Called(ctx, userID, t, expectedVersion)
	return args.Error(0)
}

func (m *TimetableRepository) History(ctx context.Context, userID, id string, opts timetable.HistoryOptions) ([]week.Record, int, error) {
	args := m.Called(ctx, userID, id, opts)
	list, _ := args.Get(0).([]week.Record)
	return list, args.Int(1), args.Error(2)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, userID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, userID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, userID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityLogger is a mock for timetable.ActivityLogger.
type ActivityLogger struct {
	mock.Mock
}

func (m *ActivityLogger) LogActivity(ctx context.Context, userID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, userID, entry)
	return args.Error(0)
}

// EventPublisher is a mock for timetable.EventPublisher.
type EventPublisher struct {
	mock.Mock
}

func (m *EventPublisher) Publish(ctx context.Context, events ...timetable.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// StatsAggregator is a mock for timetable.StatsAggregator.
type StatsAggregator struct {
	mock.Mock
}

func (m *StatsAggregator) Summarize(history []week.Record, current week.Record) stats.Summary {
	args := m.Called(history, current)
	return args.Get(0).(stats.Summary)
}
