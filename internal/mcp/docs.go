package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `weekly tracks recurring activities on a Monday to Sunday grid.

Core concepts:
- Timetable: a named set of activity definitions plus the current week.
- Week: Monday 00:00 to Sunday 23:59:59.999 in the server timezone. Each activity has 7 cells, index 0 = Monday.
- Completion rate: marked cells / slots * 100, rounded to 2 decimals. Rates are derived, never written.
- Rollover: once the week has ended the current week is archived (if it had activities) and a fresh week starts with all cells unmarked.

Workflow:
1) Call list_timetables, or pass no timetable_id to use the active timetable.
2) get_active_week shows the grid. It rolls the week over first when needed.
3) toggle_cell flips one cell and returns the updated week. Use the activity id or exact name.
4) list_history and get_stats read archived weeks. Archived weeks never change.

Docs:
- weekly://docs/concepts
- weekly://docs/errors
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "weekly://docs/concepts",
		Name:        "docs_concepts",
		Title:       "Week, rate and rollover rules",
		Description: "Glossary and invariants for timetables, weeks and history.",
		Content: `# Concepts

## Week boundaries

A week starts Monday 00:00:00.000 and ends Sunday 23:59:59.999 in the server's configured timezone.
An instant belongs to exactly one week. The current week of a timetable always has 7 cells per activity.

## Rates

- Activity rate = marked days / 7 * 100
- Overall rate = all marked cells / (7 * activity count) * 100, or 0 with no activities
- Both are rounded to 2 decimals and recomputed after every change.

## Rollover

Rollover happens lazily on reads and writes, or on demand via ` + "`evaluate_rollover`" + `.
When the current week has ended:

1. The finished week is appended to history if it had at least one activity.
2. A new week starts at the Monday containing "now", seeded from the timetable's activity definitions, all unmarked.

If several weeks passed with no activity, only the last stored week is archived. Empty gap weeks are not back-filled.

## History

History is append-only. Pages are 1-based; the default order is newest first.
`,
	},
	{
		URI:         "weekly://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Tool error codes and how to recover.",
		Content: `# Errors

Failed tool calls return ` + "`{\"error\": {\"code\", \"message\", \"recovery_hint\"}}`" + `.

| Code | Meaning |
|---|---|
| UNKNOWN_ACTIVITY | activity id/name is not in the current week |
| DAY_OUT_OF_RANGE | day_index outside 0..6 |
| INVALID_ACTIVITIES | empty or duplicate activity names |
| INVALID_ARGUMENT | other bad input |
| NO_ACTIVE_TIMETABLE | no timetable is marked active; create one or pass timetable_id |
| TIMETABLE_NOT_FOUND | unknown timetable id |
| NAME_TAKEN | another timetable already uses that name |
| CONFLICT | concurrent writers kept winning; reload and retry |
| UNAUTHORIZED | missing or invalid bearer token |

A rejected toggle leaves the week unchanged.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
