package mcp

import (
	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

type GetActiveWeekParams struct {
	TimetableID string `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
}

type ToggleCellParams struct {
	TimetableID string `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
	Activity    string `json:"activity" jsonschema:"Activity ID or exact activity name"`
	DayIndex    int    `json:"day_index" jsonschema:"Day of week, 0 = Monday through 6 = Sunday"`
}

type UpdateNotesParams struct {
	TimetableID string `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
	Notes       string `json:"notes" jsonschema:"Free-form notes for the current week"`
}

type EvaluateRolloverParams struct {
	TimetableID string `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
}

type ActivityParam struct {
	ID       string `json:"id,omitempty" jsonschema:"Existing activity ID to keep its identity"`
	Name     string `json:"name" jsonschema:"Unique activity name"`
	Time     string `json:"time,omitempty" jsonschema:"Display time slot, e.g. 7am"`
	Category string `json:"category,omitempty" jsonschema:"Grouping label"`
}

type ReplaceActivitiesParams struct {
	TimetableID string          `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
	Activities  []ActivityParam `json:"activities" jsonschema:"Complete list of activity definitions"`
}

type ListHistoryParams struct {
	TimetableID string `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
	Page        int    `json:"page,omitempty" jsonschema:"1-based page number"`
	PageSize    int    `json:"page_size,omitempty" jsonschema:"Weeks per page"`
	Order       string `json:"order,omitempty" jsonschema:"newest_first or oldest_first"`
}

type GetStatsParams struct {
	TimetableID string `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
}

type ListTimetablesParams struct{}

type CreateTimetableParams struct {
	Name        string          `json:"name" jsonschema:"Timetable display name, unique per user"`
	Description string          `json:"description,omitempty" jsonschema:"Timetable description"`
	IsActive    *bool           `json:"is_active,omitempty" jsonschema:"Whether this becomes the active timetable (default true)"`
	Activities  []ActivityParam `json:"activities,omitempty" jsonschema:"Initial activity definitions"`
}

type GetActivityLogParams struct {
	TimetableID string `json:"timetable_id,omitempty" jsonschema:"Timetable ID (omit to use the active timetable)"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of entries"`
	Offset      int    `json:"offset,omitempty" jsonschema:"Offset for pagination"`
}

type ListTimetablesResponse struct {
	Timetables []timetable.Summary `json:"timetables"`
}

type ActivitiesResponse struct {
	Activities []week.ActivityDefinition `json:"activities"`
}

type ActivityLogResponse struct {
	Entries []activity.ActivityEntry `json:"entries"`
}

func timetableRef(id string) string {
	if id == "" {
		return timetable.ActiveID
	}
	return id
}

func toDefinitions(params []ActivityParam) []week.ActivityDefinition {
	defs := make([]week.ActivityDefinition, 0, len(params))
	for _, p := range params {
		defs = append(defs, week.ActivityDefinition{ID: p.ID, Name: p.Name, Time: p.Time, Category: p.Category})
	}
	return defs
}
