package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// maxArgLogLen caps logged tool arguments.
	maxArgLogLen = 200

	// slowRequestThreshold marks requests logged at WARN. Lab submissions
	// without a queue run inline and routinely exceed it.
	slowRequestThreshold = 2 * time.Second
)

// LoggingMiddleware logs every request with its duration. Transport errors
// log at ERROR; tool error results and slow requests at WARN; the rest at
// DEBUG.
func LoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := append([]any{"method", method, "duration_ms", duration.Milliseconds()}, callAttrs(req)...)
			switch {
			case err != nil:
				logger.Error("request failed", append(attrs, "error", err.Error())...)
			case isToolError(result):
				logger.Warn("tool returned error", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
			return result, err
		}
	}
}

// callAttrs returns the tool name and raw arguments of a tools/call request.
func callAttrs(req mcp.Request) []any {
	if req == nil {
		return nil
	}
	p, ok := req.GetParams().(*mcp.CallToolParamsRaw)
	if !ok || p == nil {
		return nil
	}
	attrs := []any{"tool", p.Name}
	if len(p.Arguments) > 0 {
		attrs = append(attrs, "args", truncate(string(p.Arguments), maxArgLogLen))
	}
	return attrs
}

func isToolError(result mcp.Result) bool {
	r, ok := result.(*mcp.CallToolResult)
	return ok && r != nil && r.IsError
}

// truncate shortens s to maxLen bytes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	switch {
	case len(s) <= maxLen:
		return s
	case maxLen < 3:
		return s[:maxLen]
	default:
		return s[:maxLen-3] + "..."
	}
}
