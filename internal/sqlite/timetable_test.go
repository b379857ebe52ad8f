package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/rpggio/weekly/internal/repository"
	"github.com/stretchr/testify/require"
)

func newTimetable(id, name string, monday time.Time) *timetable.Timetable {
	defs := []week.ActivityDefinition{
		{ID: "read", Name: "Read", Time: "7am", Category: "Learning"},
		{ID: "gym", Name: "Gym", Time: "6pm", Category: "Health"},
	}
	return &timetable.Timetable{
		ID:                id,
		Name:              name,
		IsActive:          true,
		CurrentWeek:       week.New(monday, time.UTC, defs),
		DefaultActivities: defs,
		Version:           1,
		CreatedAt:         monday,
		UpdatedAt:         monday,
	}
}

func TestTimetableRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTimetableRepository(db)

	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	tt := newTimetable("tt1", "Habits", monday)
	require.NoError(t, repo.Create(ctx, "user1", tt))

	got, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	require.Equal(t, "Habits", got.Name)
	require.Equal(t, "user1", got.UserID)
	require.True(t, got.IsActive)
	require.Equal(t, int64(1), got.Version)
	require.True(t, got.CurrentWeek.WeekStartDate.Equal(monday))
	require.Len(t, got.CurrentWeek.Activities, 2)
	require.Equal(t, tt.DefaultActivities, got.DefaultActivities)

	_, err = repo.Get(ctx, "user2", "tt1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.Create(ctx, "user1", newTimetable("tt2", "Habits", monday))
	require.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestTimetableRepository_GetActiveAndList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTimetableRepository(db)

	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	inactive := newTimetable("tt1", "Old", monday)
	inactive.IsActive = false
	require.NoError(t, repo.Create(ctx, "user1", inactive))

	_, err := repo.GetActive(ctx, "user1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Create(ctx, "user1", newTimetable("tt2", "Current", monday)))
	active, err := repo.GetActive(ctx, "user1")
	require.NoError(t, err)
	require.Equal(t, "tt2", active.ID)

	list, err := repo.List(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "tt2", list[0].ID)
	require.Equal(t, 2, list[0].ActivityCount)

	list, err = repo.List(ctx, "user2")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestTimetableRepository_SaveArchivesAtomically(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTimetableRepository(db)

	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, "user1", newTimetable("tt1", "Habits", monday)))

	tt, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	tt.CurrentWeek, err = tt.CurrentWeek.Toggle("Read", 2)
	require.NoError(t, err)
	require.True(t, timetable.EvaluateAndRoll(tt, time.Date(2024, 6, 17, 0, 0, 1, 0, time.UTC), time.UTC))

	require.NoError(t, repo.Save(ctx, "user1", tt, 1))
	require.Equal(t, int64(2), tt.Version)
	require.Equal(t, 1, tt.HistoryCount)
	require.Empty(t, tt.Archived)

	got, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	require.Equal(t, 1, got.HistoryCount)
	require.True(t, got.CurrentWeek.WeekStartDate.Equal(time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)))

	weeks, total, err := repo.History(ctx, "user1", "tt1", timetable.HistoryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.True(t, weeks[0].Activities[0].DailyStatus[2])
	require.Equal(t, 14.29, weeks[0].Activities[0].CompletionRate)
	require.Equal(t, 7.14, weeks[0].OverallCompletionRate)
}

func TestTimetableRepository_SaveVersionCheck(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTimetableRepository(db)

	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, "user1", newTimetable("tt1", "Habits", monday)))

	first, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)

	first.CurrentWeek, _ = first.CurrentWeek.Toggle("Read", 0)
	require.NoError(t, repo.Save(ctx, "user1", first, first.Version))

	second.CurrentWeek, _ = second.CurrentWeek.Toggle("Gym", 0)
	require.ErrorIs(t, repo.Save(ctx, "user1", second, second.Version), repository.ErrConflict)

	// Last write wins overwrites the concurrent change.
	require.NoError(t, repo.Save(ctx, "user1", second, timetable.AnyVersion))
	got, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	require.False(t, got.CurrentWeek.Activities[0].DailyStatus[0])
	require.True(t, got.CurrentWeek.Activities[1].DailyStatus[0])
	require.Equal(t, int64(3), got.Version)

	missing := newTimetable("nope", "Nope", monday)
	require.ErrorIs(t, repo.Save(ctx, "user1", missing, timetable.AnyVersion), repository.ErrNotFound)
	require.ErrorIs(t, repo.Save(ctx, "user2", got, timetable.AnyVersion), repository.ErrNotFound)
}

func TestTimetableRepository_ConcurrentRolloverArchivesOnce(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTimetableRepository(db)

	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, "user1", newTimetable("tt1", "Habits", monday)))

	now := time.Date(2024, 6, 18, 9, 0, 0, 0, time.UTC)
	a, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	b, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	require.True(t, timetable.EvaluateAndRoll(a, now, time.UTC))
	require.True(t, timetable.EvaluateAndRoll(b, now, time.UTC))

	require.NoError(t, repo.Save(ctx, "user1", a, timetable.AnyVersion))
	require.NoError(t, repo.Save(ctx, "user1", b, timetable.AnyVersion))
	require.Equal(t, 1, b.HistoryCount)

	_, total, err := repo.History(ctx, "user1", "tt1", timetable.HistoryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestTimetableRepository_HistoryPaging(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewTimetableRepository(db)

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, "user1", newTimetable("tt1", "Habits", start)))

	tt, err := repo.Get(ctx, "user1", "tt1")
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.True(t, timetable.EvaluateAndRoll(tt, start.AddDate(0, 0, 7*i), time.UTC))
	}
	require.NoError(t, repo.Save(ctx, "user1", tt, timetable.AnyVersion))
	require.Equal(t, 5, tt.HistoryCount)

	weeks, total, err := repo.History(ctx, "user1", "tt1", timetable.HistoryOptions{Offset: 0, Limit: 2, NewestFirst: true})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, weeks, 2)
	require.True(t, weeks[0].WeekStartDate.Equal(start.AddDate(0, 0, 28)))
	require.True(t, weeks[1].WeekStartDate.Equal(start.AddDate(0, 0, 21)))

	weeks, _, err = repo.History(ctx, "user1", "tt1", timetable.HistoryOptions{Offset: 4, Limit: 2})
	require.NoError(t, err)
	require.Len(t, weeks, 1)
	require.True(t, weeks[0].WeekStartDate.Equal(start.AddDate(0, 0, 28)))

	weeks, total, err = repo.History(ctx, "user2", "tt1", timetable.HistoryOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, weeks)
}
