package functional_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// newStdioSession starts the server binary in stdio mode. Build it first
// with: go build -o bin/weekly ./cmd/server
func newStdioSession(t *testing.T) *sdkmcp.ClientSession {
	t.Helper()

	binaryPath := "./bin/weekly"
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		binaryPath = "../../bin/weekly"
		if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
			t.Skip("Server binary not found. Build ./cmd/server into bin/weekly first.")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = append(os.Environ(),
		"WEEKLY_TRANSPORT=stdio",
		"WEEKLY_DB_PATH=:memory:",
		"WEEKLY_AUTH_ENABLED=false",
		"WEEKLY_TIMEZONE=UTC",
	)

	session, err := newClient().Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		cancel()
		t.Fatalf("Failed to connect: %v", err)
	}

	t.Cleanup(func() {
		_ = session.Close()
		cancel()
	})
	return session
}

func TestStdioFunctional_CreateAndToggle(t *testing.T) {
	session := newStdioSession(t)

	callTool(t, session, "create_timetable", map[string]any{
		"name":       "Habits",
		"activities": []map[string]any{{"name": "Read"}, {"name": "Gym"}},
	})

	var list struct {
		Timetables []struct {
			Name          string `json:"name"`
			ActivityCount int    `json:"activity_count"`
		} `json:"timetables"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, session, "list_timetables", nil), &list))
	require.Len(t, list.Timetables, 1)
	require.Equal(t, 2, list.Timetables[0].ActivityCount)

	var w weekView
	require.NoError(t, json.Unmarshal(callTool(t, session, "toggle_cell", map[string]any{"activity": "Gym", "day_index": 6}), &w))
	require.True(t, w.Activities[1].DailyStatus[6])

	require.NoError(t, json.Unmarshal(callTool(t, session, "toggle_cell", map[string]any{"activity": "Gym", "day_index": 6}), &w))
	require.False(t, w.Activities[1].DailyStatus[6])
	require.Zero(t, w.OverallCompletionRate)
}

func TestStdioFunctional_Resources(t *testing.T) {
	session := newStdioSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "weekly://docs/concepts"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Contents)
	require.Contains(t, res.Contents[0].Text, "week")
}
