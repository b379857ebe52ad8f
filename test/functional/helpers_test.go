package functional_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func newClient() *sdkmcp.Client {
	return sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
}

// callTool invokes a tool and returns its JSON text content.
func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) json.RawMessage {
	t.Helper()
	result := callToolRaw(t, session, name, args)
	require.False(t, result.IsError, "Tool %s returned error: %s", name, textOf(t, result))
	return json.RawMessage(textOf(t, result))
}

func callToolRaw(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed", name)
	require.NotEmpty(t, result.Content, "Tool %s returned no content", name)
	return result
}

func textOf(t *testing.T, result *sdkmcp.CallToolResult) string {
	t.Helper()
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			return text.Text
		}
	}
	t.Fatal("no text content")
	return ""
}

type weekView struct {
	WeekStartDate         time.Time `json:"week_start_date"`
	OverallCompletionRate float64   `json:"overall_completion_rate"`
	Activities            []struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		DailyStatus    []bool  `json:"daily_status"`
		CompletionRate float64 `json:"completion_rate"`
	} `json:"activities"`
	Notes string `json:"notes"`
}

type errorView struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
