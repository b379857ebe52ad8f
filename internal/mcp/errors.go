package mcp

import (
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/weekly/internal/apierror"
)

type errorPayload struct {
	Error *apierror.APIError `json:"error"`
}

// toolError reports err as a tool-level failure so the model can read the
// code and recovery hint.
func toolError(err error) *sdkmcp.CallToolResult {
	data, _ := json.Marshal(errorPayload{Error: apierror.Map(err)})
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func toolResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}
