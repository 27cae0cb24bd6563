package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatsInput defines the input schema for the stats tool.
type StatsInput struct{}

// NewStatsHandler creates the stats tool handler.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, any, error) {
		if deps.Metrics == nil {
			return ErrorResult("Metrics are not enabled", ""), nil, nil
		}
		return JSONResult(deps.Metrics.Snapshot()), nil, nil
	}
}
