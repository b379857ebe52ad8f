package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/weekly/internal/observability"
)

const maxLoggedPayload = 2048

// callLogging times tool calls, reports them to metrics and logs them at
// info level. Other methods are logged at debug level only.
func callLogging(logger *slog.Logger) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			call, ok := req.(*sdkmcp.CallToolRequest)
			if !ok || call.Params == nil {
				if logger != nil && logger.Enabled(ctx, slog.LevelDebug) {
					logger.Debug("mcp request", "method", method, "user_id", getUserID(ctx), "params", truncatePayload(req.GetParams()))
				}
				return next(ctx, method, req)
			}

			start := time.Now()
			result, err := next(ctx, method, req)
			elapsed := time.Since(start)

			outcome := toolOutcome(result, err)
			observability.RecordToolCall(call.Params.Name, outcome, elapsed)
			if logger != nil {
				attrs := []any{
					"tool", call.Params.Name,
					"outcome", outcome,
					"user_id", getUserID(ctx),
					"session_id", getSessionID(ctx),
					"duration_ms", elapsed.Milliseconds(),
				}
				if err != nil {
					attrs = append(attrs, "error", err)
				}
				logger.Info("mcp tool call", attrs...)
				if logger.Enabled(ctx, slog.LevelDebug) {
					logger.Debug("mcp tool payload", "tool", call.Params.Name, "arguments", truncatePayload(call.Params.Arguments), "result", truncatePayload(result))
				}
			}
			return result, err
		}
	}
}

func toolOutcome(result sdkmcp.Result, err error) string {
	if err != nil {
		return "error"
	}
	if r, ok := result.(*sdkmcp.CallToolResult); ok && r.IsError {
		return "rejected"
	}
	return "ok"
}

func truncatePayload(payload any) string {
	if payload == nil {
		return ""
	}
	var data []byte
	if raw, ok := payload.(json.RawMessage); ok {
		data = raw
	} else {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return "<unencodable>"
		}
	}
	if len(data) > maxLoggedPayload {
		return string(data[:maxLoggedPayload]) + "...(truncated)"
	}
	return string(data)
}
