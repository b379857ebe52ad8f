package activity

import "time"

// ActivityType represents the kind of aggregate mutation that was logged
type ActivityType string

const (
	TypeTimetableCreated   ActivityType = "timetable_created"
	TypeCellToggled        ActivityType = "cell_toggled"
	TypeNotesUpdated       ActivityType = "notes_updated"
	TypeWeekRolledOver     ActivityType = "week_rolled_over"
	TypeActivitiesReplaced ActivityType = "activities_replaced"
)

// ActivityEntry represents an event in the audit log
type ActivityEntry struct {
	ID              int64        `json:"id"`
	UserID          string       `json:"user_id"`
	TimetableID     string       `json:"timetable_id"`
	ClientSessionID *string      `json:"client_session_id,omitempty"`
	ActivityType    ActivityType `json:"type"`
	Summary         string       `json:"summary"`
	Details         string       `json:"details,omitempty"` // JSON string
	WeekStart       time.Time    `json:"week_start"`
	Version         int64        `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
}
