// Package client is a Go client for the weekly REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/weekly/internal/apierror"
	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/rpggio/weekly/internal/transport"
)

// Client calls a weekly server.
type Client struct {
	baseURL   string
	token     string
	sessionID string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as the bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithClientSession tags every change with sessionID in the audit log.
func WithClientSession(sessionID string) Option {
	return func(c *Client) { c.sessionID = sessionID }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateTimetable creates a timetable.
func (c *Client) CreateTimetable(ctx context.Context, req timetable.CreateRequest) (*timetable.Timetable, error) {
	var out timetable.Timetable
	if err := c.do(ctx, http.MethodPost, "/v1/timetables", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTimetables lists the caller's timetables.
func (c *Client) ListTimetables(ctx context.Context) ([]timetable.Summary, error) {
	var out transport.ListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/timetables", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Timetables, nil
}

// Timetable returns a timetable summary.
func (c *Client) Timetable(ctx context.Context, id string) (*timetable.Summary, error) {
	var out timetable.Summary
	if err := c.do(ctx, http.MethodGet, timetablePath(id, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveWeek returns the current week.
func (c *Client) ActiveWeek(ctx context.Context, id string) (week.Record, error) {
	var out week.Record
	err := c.do(ctx, http.MethodGet, timetablePath(id, "/week"), nil, nil, &out)
	return out, err
}

// Toggle flips one cell and returns the server's week.
func (c *Client) Toggle(ctx context.Context, id, activityID string, dayIndex int) (week.Record, error) {
	var out week.Record
	body := transport.ToggleRequest{ActivityID: activityID, DayIndex: &dayIndex}
	err := c.do(ctx, http.MethodPost, timetablePath(id, "/week/toggle"), nil, body, &out)
	return out, err
}

// UpdateNotes replaces the notes of the current week.
func (c *Client) UpdateNotes(ctx context.Context, id, notes string) (week.Record, error) {
	var out week.Record
	err := c.do(ctx, http.MethodPut, timetablePath(id, "/week/notes"), nil, transport.NotesRequest{Notes: notes}, &out)
	return out, err
}

// EvaluateRollover asks the server to roll the week over if it has ended.
func (c *Client) EvaluateRollover(ctx context.Context, id string) (*timetable.RolloverResult, error) {
	var out timetable.RolloverResult
	if err := c.do(ctx, http.MethodPost, timetablePath(id, "/week/rollover"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceActivities replaces the activity definitions.
func (c *Client) ReplaceActivities(ctx context.Context, id string, defs []week.ActivityDefinition) ([]week.ActivityDefinition, error) {
	var out transport.ActivitiesResponse
	if err := c.do(ctx, http.MethodPut, timetablePath(id, "/activities"), nil, transport.ActivitiesRequest{Activities: defs}, &out); err != nil {
		return nil, err
	}
	return out.Activities, nil
}

// History returns one page of archived weeks.
func (c *Client) History(ctx context.Context, id string, req timetable.HistoryRequest) (*timetable.HistoryPage, error) {
	q := url.Values{}
	if req.Page > 0 {
		q.Set("page", strconv.Itoa(req.Page))
	}
	if req.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(req.PageSize))
	}
	if req.Order != "" {
		q.Set("order", string(req.Order))
	}
	var out timetable.HistoryPage
	if err := c.do(ctx, http.MethodGet, timetablePath(id, "/history"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns the completion summary.
func (c *Client) Stats(ctx context.Context, id string) (*stats.Summary, error) {
	var out stats.Summary
	if err := c.do(ctx, http.MethodGet, timetablePath(id, "/stats"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivityLog returns recent audit entries, newest first.
func (c *Client) ActivityLog(ctx context.Context, id string, limit, offset int) ([]activity.ActivityEntry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out transport.ActivityLogResponse
	if err := c.do(ctx, http.MethodGet, timetablePath(id, "/activity"), q, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func timetablePath(id, suffix string) string {
	if id == "" {
		id = timetable.ActiveID
	}
	return "/v1/timetables/" + url.PathEscape(id) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.sessionID != "" {
		req.Header.Set(transport.ClientSessionHeader, c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp transport.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == nil {
			return &apierror.APIError{Code: apierror.CodeInternal, Message: fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode)}
		}
		return errResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsCode reports whether err is an APIError with code.
func IsCode(err error, code string) bool {
	var apiErr *apierror.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
