package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/rpggio/weekly/internal/observability"
)

// TimetableService defines timetable operations needed by the REST API.
type TimetableService interface {
	Create(ctx context.Context, userID string, req timetable.CreateRequest) (*timetable.Timetable, error)
	Get(ctx context.Context, userID, id string) (*timetable.Timetable, error)
	List(ctx context.Context, userID string) ([]timetable.Summary, error)
	ActiveWeek(ctx context.Context, userID, id string) (week.Record, error)
	ToggleCell(ctx context.Context, userID, id, activityRef string, dayIndex int) (week.Record, error)
	UpdateNotes(ctx context.Context, userID, id, notes string) (week.Record, error)
	EvaluateRollover(ctx context.Context, userID, id string) (*timetable.RolloverResult, error)
	ReplaceActivities(ctx context.Context, userID, id string, defs []week.ActivityDefinition) ([]week.ActivityDefinition, error)
	History(ctx context.Context, userID, id string, req timetable.HistoryRequest) (*timetable.HistoryPage, error)
	Stats(ctx context.Context, userID, id string) (*stats.Summary, error)
}

// ActivityService defines audit log operations needed by the REST API.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// RouterOptions configures optional parts of the router.
type RouterOptions struct {
	// Auth authenticates /v1 and /mcp. Nil leaves them open, which only
	// works when handlers can find a user some other way.
	Auth func(http.Handler) http.Handler
	// MCP is mounted at /mcp when set.
	MCP http.Handler
	// Metrics is served at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
}

// Server holds the REST handlers.
type Server struct {
	timetables TimetableService
	activity   ActivityService
	logger     *slog.Logger
}

// NewServer creates the HTTP router with middleware.
func NewServer(timetables TimetableService, activity ActivityService, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{timetables: timetables, activity: activity, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMetrics)

	r.Get("/health", srv.handleHealth)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Use(ClientSessionMiddleware)

		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
		}

		r.Route("/v1/timetables", func(r chi.Router) {
			r.Post("/", srv.handleCreate)
			r.Get("/", srv.handleList)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.handleGet)
				r.Get("/week", srv.handleActiveWeek)
				r.Post("/week/toggle", srv.handleToggle)
				r.Put("/week/notes", srv.handleNotes)
				r.Post("/week/rollover", srv.handleRollover)
				r.Put("/activities", srv.handleReplaceActivities)
				r.Get("/history", srv.handleHistory)
				r.Get("/stats", srv.handleStats)
				r.Get("/activity", srv.handleActivityLog)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
