package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/weekly/internal/apierror"
	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

// ToggleRequest is the body of POST /week/toggle. ActivityID also accepts
// the activity's exact name.
type ToggleRequest struct {
	ActivityID string `json:"activity_id"`
	DayIndex   *int   `json:"day_index"`
}

// NotesRequest is the body of PUT /week/notes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// ActivitiesRequest is the body of PUT /activities.
type ActivitiesRequest struct {
	Activities []week.ActivityDefinition `json:"activities"`
}

// ActivitiesResponse lists the stored activity definitions.
type ActivitiesResponse struct {
	Activities []week.ActivityDefinition `json:"activities"`
}

// ListResponse wraps the timetable list.
type ListResponse struct {
	Timetables []timetable.Summary `json:"timetables"`
}

// ActivityLogResponse wraps audit log entries.
type ActivityLogResponse struct {
	Entries []activity.ActivityEntry `json:"entries"`
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, apierror.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.Map(err)
	if apiErr.Code == apierror.CodeInternal {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, apiErr.Status(), ErrorResponse{Error: apiErr})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req timetable.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.timetables.Create(r.Context(), userID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	list, err := s.timetables.List(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Timetables: list})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	t, err := s.timetables.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Summarize())
}

func (s *Server) handleActiveWeek(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	rec, err := s.timetables.ActiveWeek(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req ToggleRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.ActivityID == "" || req.DayIndex == nil {
		s.fail(w, r, badRequest("activity_id and day_index are required"))
		return
	}
	rec, err := s.timetables.ToggleCell(r.Context(), userID, chi.URLParam(r, "id"), req.ActivityID, *req.DayIndex)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req NotesRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.timetables.UpdateNotes(r.Context(), userID, chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	res, err := s.timetables.EvaluateRollover(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReplaceActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req ActivitiesRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	defs, err := s.timetables.ReplaceActivities(r.Context(), userID, chi.URLParam(r, "id"), req.Activities)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivitiesResponse{Activities: defs})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.timetables.History(r.Context(), userID, chi.URLParam(r, "id"), timetable.HistoryRequest{
		Page:     page,
		PageSize: size,
		Order:    timetable.HistoryOrder(r.URL.Query().Get("order")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	summary, err := s.timetables.Stats(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleActivityLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// Resolves "active" and enforces ownership before reading the log.
	t, err := s.timetables.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.activity.GetRecentActivity(r.Context(), userID, activity.ListActivityOptions{
		TimetableID: t.ID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, ActivityLogResponse{Entries: entries})
}
