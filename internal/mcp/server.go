package mcp

import (
	"context"
	"log/slog"
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

// TimetableService defines timetable operations needed by MCP.
type TimetableService interface {
	Create(ctx context.Context, userID string, req timetable.CreateRequest) (*timetable.Timetable, error)
	List(ctx context.Context, userID string) ([]timetable.Summary, error)
	Get(ctx context.Context, userID, id string) (*timetable.Timetable, error)
	ActiveWeek(ctx context.Context, userID, id string) (week.Record, error)
	ToggleCell(ctx context.Context, userID, id, activityRef string, dayIndex int) (week.Record, error)
	UpdateNotes(ctx context.Context, userID, id, notes string) (week.Record, error)
	EvaluateRollover(ctx context.Context, userID, id string) (*timetable.RolloverResult, error)
	ReplaceActivities(ctx context.Context, userID, id string, defs []week.ActivityDefinition) ([]week.ActivityDefinition, error)
	History(ctx context.Context, userID, id string, req timetable.HistoryRequest) (*timetable.HistoryPage, error)
	Stats(ctx context.Context, userID, id string) (*stats.Summary, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Timetables TimetableService
	Activity   ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      UserResolver
	AuthEnabled   bool
	DefaultUser   string
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	defaultUser := cfg.DefaultUser
	if defaultUser == "" {
		defaultUser = "default"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "weekly",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Each added middleware wraps the previous ones, so call logging goes
	// first to run innermost, after user and session are resolved.
	server.AddReceivingMiddleware(callLogging(cfg.Logger))
	// Stdio is a local, single-user transport and never authenticates.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(defaultUser))
	}
	server.AddReceivingMiddleware(sessionMiddleware())

	registerTools(server, cfg.Services)

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, nil)
}
