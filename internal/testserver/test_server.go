// Package testserver runs the full HTTP stack over an in-memory sqlite
// database for end-to-end tests.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/mcp"
	"github.com/rpggio/weekly/internal/sqlite"
	"github.com/rpggio/weekly/internal/transport"
)

// Clock is a settable time source shared by the server's services.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type TestServer struct {
	Server     *httptest.Server
	DB         *sqlite.DB
	Token      string
	UserID     string
	Clock      *Clock
	Timetables *timetable.Service
	Activity   *activity.Service
}

// Options adjusts the service configuration. Clock and Location are
// filled in by New.
type Options struct {
	Start     time.Time
	Configure func(*timetable.Options)
}

// New starts a server authenticated by token for userID. The clock starts
// at opts.Start, or Wednesday 2024-06-12 09:00 UTC when zero.
func New(t *testing.T, token, userID string, opts ...Options) *TestServer {
	t.Helper()

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	}
	clock := &Clock{now: o.Start}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	svcOpts := timetable.DefaultOptions()
	svcOpts.Location = time.UTC
	svcOpts.Clock = clock.Now
	if o.Configure != nil {
		o.Configure(&svcOpts)
	}

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	timetableSvc := timetable.NewService(sqlite.NewTimetableRepository(db), activitySvc, nil, stats.NewAggregator(), nil, svcOpts)

	keys := sqlite.NewAPIKeyRepository(db)
	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcp.Services{Timetables: timetableSvc, Activity: activitySvc},
		Resolver:      keys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	router := transport.NewServer(timetableSvc, activitySvc, transport.RouterOptions{
		Auth: transport.AuthMiddleware(keys),
		MCP:  mcp.NewHTTPHandler(mcpServer),
	})
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:     server,
		DB:         db,
		Token:      token,
		UserID:     userID,
		Clock:      clock,
		Timetables: timetableSvc,
		Activity:   activitySvc,
	}

	require.NoError(t, ts.AddAPIKey(token, userID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

// URL returns the server's base URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// AddAPIKey registers another bearer token.
func (ts *TestServer) AddAPIKey(token, userID string) error {
	return sqlite.NewAPIKeyRepository(ts.DB).Add(context.Background(), token, userID, "test")
}
