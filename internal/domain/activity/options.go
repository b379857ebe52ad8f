package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	TimetableID     string
	ClientSessionID *string
	ActivityType    *ActivityType
	Limit           int
	Offset          int
}
