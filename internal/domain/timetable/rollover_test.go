package timetable_test

import (
	"testing"
	"time"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/stretchr/testify/require"
)

func scenarioTimetable() *timetable.Timetable {
	defs := []week.ActivityDefinition{{ID: "read", Name: "Read", Time: "7am", Category: "Learning"}}
	return &timetable.Timetable{
		ID:                "tt1",
		UserID:            "user1",
		Name:              "Habits",
		IsActive:          true,
		CurrentWeek:       week.New(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), time.UTC, defs),
		DefaultActivities: defs,
		Version:           1,
	}
}

func TestEvaluateAndRoll_SundayIsNoOp(t *testing.T) {
	tt := scenarioTimetable()
	before := tt.CurrentWeek

	rolled := timetable.EvaluateAndRoll(tt, time.Date(2024, 6, 16, 23, 59, 59, 999_000_000, time.UTC), time.UTC)
	require.False(t, rolled)
	require.Equal(t, before, tt.CurrentWeek)
	require.Empty(t, tt.Archived)
	require.Zero(t, tt.HistoryCount)
}

func TestEvaluateAndRoll_ArchivesExpiredWeek(t *testing.T) {
	tt := scenarioTimetable()
	toggled, err := tt.CurrentWeek.Toggle("Read", 2)
	require.NoError(t, err)
	tt.CurrentWeek = toggled

	now := time.Date(2024, 6, 17, 0, 0, 1, 0, time.UTC)
	require.True(t, timetable.EvaluateAndRoll(tt, now, time.UTC))

	require.Len(t, tt.Archived, 1)
	require.Equal(t, toggled, tt.Archived[0])
	require.Equal(t, 14.29, tt.Archived[0].OverallCompletionRate)
	require.Equal(t, 1, tt.HistoryCount)

	require.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), tt.CurrentWeek.WeekStartDate)
	require.Equal(t, time.Date(2024, 6, 23, 23, 59, 59, 999_000_000, time.UTC), tt.CurrentWeek.WeekEndDate)
	require.Len(t, tt.CurrentWeek.Activities, 1)
	require.Equal(t, week.DailyStatus{}, tt.CurrentWeek.Activities[0].DailyStatus)
	require.Zero(t, tt.CurrentWeek.OverallCompletionRate)

	// A second evaluation with the same or a later instant does nothing.
	require.False(t, timetable.EvaluateAndRoll(tt, now, time.UTC))
	require.False(t, timetable.EvaluateAndRoll(tt, now.Add(72*time.Hour), time.UTC))
	require.Len(t, tt.Archived, 1)
	require.Equal(t, 1, tt.HistoryCount)
}

func TestEvaluateAndRoll_EmptyWeekIsNotArchived(t *testing.T) {
	tt := scenarioTimetable()
	tt.CurrentWeek = week.New(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), time.UTC, nil)

	require.True(t, timetable.EvaluateAndRoll(tt, time.Date(2024, 6, 18, 9, 0, 0, 0, time.UTC), time.UTC))
	require.Empty(t, tt.Archived)
	require.Zero(t, tt.HistoryCount)
	require.Len(t, tt.CurrentWeek.Activities, 1)
}

func TestEvaluateAndRoll_SeedsByValue(t *testing.T) {
	tt := scenarioTimetable()
	require.True(t, timetable.EvaluateAndRoll(tt, time.Date(2024, 6, 17, 0, 0, 1, 0, time.UTC), time.UTC))

	tt.CurrentWeek.Activities[0].Activity.Name = "Write"
	require.Equal(t, "Read", tt.DefaultActivities[0].Name)
}

func TestEvaluateAndRoll_SkipsIdleWeeks(t *testing.T) {
	tt := scenarioTimetable()
	require.True(t, timetable.EvaluateAndRoll(tt, time.Date(2024, 7, 3, 12, 0, 0, 0, time.UTC), time.UTC))
	require.Len(t, tt.Archived, 1)
	require.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), tt.CurrentWeek.WeekStartDate)
}
