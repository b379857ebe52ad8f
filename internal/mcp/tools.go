package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/weekly/internal/apierror"
	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/timetable"
)

type toolFunc[In any] func(ctx context.Context, userID string, in In) (any, error)

func addTool[In any](server *sdkmcp.Server, name, description string, fn toolFunc[In]) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			userID := getUserID(ctx)
			if userID == "" {
				return toolError(apierror.ErrUnauthorized), nil, nil
			}
			out, err := fn(ctx, userID, in)
			if err != nil {
				return toolError(err), nil, nil
			}
			res, err := toolResult(out)
			return res, nil, err
		})
}

func registerTools(server *sdkmcp.Server, svc Services) {
	tt := svc.Timetables

	addTool(server, "list_timetables", "List the user's timetables with current week completion",
		func(ctx context.Context, userID string, _ ListTimetablesParams) (any, error) {
			list, err := tt.List(ctx, userID)
			if err != nil {
				return nil, err
			}
			return ListTimetablesResponse{Timetables: list}, nil
		})

	addTool(server, "create_timetable", "Create a timetable and seed its current week",
		func(ctx context.Context, userID string, in CreateTimetableParams) (any, error) {
			active := true
			if in.IsActive != nil {
				active = *in.IsActive
			}
			t, err := tt.Create(ctx, userID, timetable.CreateRequest{
				Name:        in.Name,
				Description: in.Description,
				IsActive:    active,
				Activities:  toDefinitions(in.Activities),
			})
			if err != nil {
				return nil, err
			}
			return t.Summarize(), nil
		})

	addTool(server, "get_active_week", "Get the current week grid, rolling over first if the week has ended",
		func(ctx context.Context, userID string, in GetActiveWeekParams) (any, error) {
			return tt.ActiveWeek(ctx, userID, timetableRef(in.TimetableID))
		})

	addTool(server, "toggle_cell", "Flip one activity/day cell of the current week and return the updated week",
		func(ctx context.Context, userID string, in ToggleCellParams) (any, error) {
			return tt.ToggleCell(ctx, userID, timetableRef(in.TimetableID), in.Activity, in.DayIndex)
		})

	addTool(server, "update_notes", "Replace the notes of the current week",
		func(ctx context.Context, userID string, in UpdateNotesParams) (any, error) {
			return tt.UpdateNotes(ctx, userID, timetableRef(in.TimetableID), in.Notes)
		})

	addTool(server, "evaluate_rollover", "Archive the current week and start a new one if the week has ended",
		func(ctx context.Context, userID string, in EvaluateRolloverParams) (any, error) {
			return tt.EvaluateRollover(ctx, userID, timetableRef(in.TimetableID))
		})

	addTool(server, "replace_activities", "Replace the activity definitions that seed future weeks; the current week is unchanged",
		func(ctx context.Context, userID string, in ReplaceActivitiesParams) (any, error) {
			defs, err := tt.ReplaceActivities(ctx, userID, timetableRef(in.TimetableID), toDefinitions(in.Activities))
			if err != nil {
				return nil, err
			}
			return ActivitiesResponse{Activities: defs}, nil
		})

	addTool(server, "list_history", "List archived weeks, one page at a time",
		func(ctx context.Context, userID string, in ListHistoryParams) (any, error) {
			return tt.History(ctx, userID, timetableRef(in.TimetableID), timetable.HistoryRequest{
				Page:     in.Page,
				PageSize: in.PageSize,
				Order:    timetable.HistoryOrder(in.Order),
			})
		})

	addTool(server, "get_stats", "Summarize completion across archived weeks and the current week",
		func(ctx context.Context, userID string, in GetStatsParams) (any, error) {
			return tt.Stats(ctx, userID, timetableRef(in.TimetableID))
		})

	if svc.Activity == nil {
		return
	}
	addTool(server, "get_activity_log", "List recent changes to a timetable, newest first",
		func(ctx context.Context, userID string, in GetActivityLogParams) (any, error) {
			t, err := tt.Get(ctx, userID, timetableRef(in.TimetableID))
			if err != nil {
				return nil, err
			}
			entries, err := svc.Activity.GetRecentActivity(ctx, userID, activity.ListActivityOptions{
				TimetableID: t.ID,
				Limit:       in.Limit,
				Offset:      in.Offset,
			})
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = []activity.ActivityEntry{}
			}
			return ActivityLogResponse{Entries: entries}, nil
		})
}
