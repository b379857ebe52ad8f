// Package apierror maps domain errors to the stable error shape shared by the
// REST and MCP surfaces.
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Error codes.
const (
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeUnknownActivity   = "UNKNOWN_ACTIVITY"
	CodeDayOutOfRange     = "DAY_OUT_OF_RANGE"
	CodeInvalidActivities = "INVALID_ACTIVITIES"
	CodeNoActiveTimetable = "NO_ACTIVE_TIMETABLE"
	CodeNotFound          = "TIMETABLE_NOT_FOUND"
	CodeNameTaken         = "NAME_TAKEN"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL"
)

// APIError is the error body returned to clients.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status returns the HTTP status for the error code.
func (e *APIError) Status() int {
	switch e.Code {
	case CodeInvalidArgument, CodeUnknownActivity, CodeDayOutOfRange, CodeInvalidActivities:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound, CodeNoActiveTimetable:
		return http.StatusNotFound
	case CodeNameTaken, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Map converts err into an APIError. Unrecognised errors become INTERNAL
// without leaking their text.
func Map(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return &APIError{Code: CodeUnauthorized, Message: "missing or invalid bearer token", RecoveryHint: "Send Authorization: Bearer <token>"}
	// Must precede the generic invalid argument case it wraps.
	case errors.Is(err, timetable.ErrNoActiveTimetable):
		return &APIError{Code: CodeNoActiveTimetable, Message: "no active timetable", RecoveryHint: "Create a timetable with is_active=true or pass its id"}
	case errors.Is(err, week.ErrUnknownActivity):
		return &APIError{Code: CodeUnknownActivity, Message: err.Error(), RecoveryHint: "Use an activity id or exact name from the current week"}
	case errors.Is(err, week.ErrDayOutOfRange):
		return &APIError{Code: CodeDayOutOfRange, Message: err.Error(), RecoveryHint: "Day index runs 0 (Monday) to 6 (Sunday)"}
	case errors.Is(err, week.ErrEmptyActivityName), errors.Is(err, week.ErrDuplicateActivity):
		return &APIError{Code: CodeInvalidActivities, Message: err.Error(), RecoveryHint: "Activity names must be non-empty and unique"}
	case errors.Is(err, week.ErrInvalidArgument):
		return &APIError{Code: CodeInvalidArgument, Message: err.Error()}
	case errors.Is(err, timetable.ErrTimetableNotFound):
		return &APIError{Code: CodeNotFound, Message: "timetable not found", RecoveryHint: "List timetables to find a valid id"}
	case errors.Is(err, timetable.ErrNameTaken):
		return &APIError{Code: CodeNameTaken, Message: "timetable name already in use", RecoveryHint: "Choose a different name"}
	case errors.Is(err, timetable.ErrConflict):
		return &APIError{Code: CodeConflict, Message: "timetable modified concurrently", RecoveryHint: "Reload the week and retry"}
	default:
		return &APIError{Code: CodeInternal, Message: "internal error"}
	}
}
