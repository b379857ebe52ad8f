package timetable

import (
	"time"

	"github.com/rpggio/weekly/internal/domain/week"
)

// EvaluateAndRoll replaces an expired current week with a fresh one seeded
// from the default activities. The expired week is queued on t.Archived
// unless it has no activities. It reports whether a rollover happened and is
// a no-op for any now that is not strictly after the current week's end.
func EvaluateAndRoll(t *Timetable, now time.Time, loc *time.Location) bool {
	if !t.CurrentWeek.Expired(now) {
		return false
	}
	if len(t.CurrentWeek.Activities) > 0 {
		t.Archived = append(t.Archived, t.CurrentWeek.Clone())
		t.HistoryCount++
	}
	t.CurrentWeek = week.New(now, loc, t.DefaultActivities)
	return true
}
