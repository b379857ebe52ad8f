// Package stats derives summary figures from a timetable's archived weeks and
// its current week.
package stats

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rpggio/weekly/internal/domain/week"
)

// DefaultStreakThreshold is the overall completion a week needs to extend a streak.
const DefaultStreakThreshold = 50.0

// ActivityAverage is the mean completion of one activity across archived weeks.
type ActivityAverage struct {
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	AverageRate  float64 `json:"average_rate"`
	WeeksTracked int     `json:"weeks_tracked"`
}

// Summary is the aggregate view returned by the stats operation.
type Summary struct {
	WeeksTracked          int               `json:"weeks_tracked"`
	AverageCompletion     float64           `json:"average_completion"`
	BestCompletion        float64           `json:"best_completion"`
	BestWeekStart         *time.Time        `json:"best_week_start,omitempty"`
	LatestCompletion      float64           `json:"latest_completion"`
	CurrentWeekStart      time.Time         `json:"current_week_start"`
	CurrentWeekCompletion float64           `json:"current_week_completion"`
	CurrentStreak         int               `json:"current_streak"`
	StreakThreshold       float64           `json:"streak_threshold"`
	Activities            []ActivityAverage `json:"activities"`
}

// Aggregator computes summaries. The zero value uses DefaultStreakThreshold.
type Aggregator struct {
	StreakThreshold float64
}

// NewAggregator returns an aggregator with the default streak threshold.
func NewAggregator() *Aggregator {
	return &Aggregator{StreakThreshold: DefaultStreakThreshold}
}

// Summarize expects history in chronological order.
func (a *Aggregator) Summarize(history []week.Record, current week.Record) Summary {
	threshold := a.StreakThreshold
	if threshold <= 0 {
		threshold = DefaultStreakThreshold
	}

	sum := Summary{
		WeeksTracked:          len(history),
		CurrentWeekStart:      current.WeekStartDate,
		CurrentWeekCompletion: current.OverallCompletionRate,
		StreakThreshold:       threshold,
		Activities:            []ActivityAverage{},
	}
	if len(history) == 0 {
		return sum
	}

	type acc struct {
		category string
		total    float64
		weeks    int
	}
	perActivity := make(map[string]*acc)
	total := 0.0
	for i, rec := range history {
		total += rec.OverallCompletionRate
		if i == 0 || rec.OverallCompletionRate > sum.BestCompletion {
			sum.BestCompletion = rec.OverallCompletionRate
			start := rec.WeekStartDate
			sum.BestWeekStart = &start
		}
		for _, p := range rec.Activities {
			a, ok := perActivity[p.Activity.Name]
			if !ok {
				a = &acc{}
				perActivity[p.Activity.Name] = a
			}
			a.category = p.Activity.Category
			a.total += p.CompletionRate
			a.weeks++
		}
	}
	sum.AverageCompletion = round2(total / float64(len(history)))
	sum.LatestCompletion = history[len(history)-1].OverallCompletionRate

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].OverallCompletionRate < threshold {
			break
		}
		sum.CurrentStreak++
	}

	for name, a := range perActivity {
		sum.Activities = append(sum.Activities, ActivityAverage{
			Name:         name,
			Category:     a.category,
			AverageRate:  round2(a.total / float64(a.weeks)),
			WeeksTracked: a.weeks,
		})
	}
	slices.SortFunc(sum.Activities, func(x, y ActivityAverage) int {
		return strings.Compare(x.Name, y.Name)
	})
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
