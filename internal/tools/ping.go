package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PingInput defines the input schema for the ping tool.
type PingInput struct {
	Echo string `json:"echo,omitempty" jsonschema:"Text to echo back"`
}

// NewPingHandler answers "pong", naming the default project when one is
// configured, or echoes its input.
func NewPingHandler(deps *Dependencies) mcp.ToolHandlerFor[PingInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PingInput) (*mcp.CallToolResult, any, error) {
		if input.Echo != "" {
			return TextResult(input.Echo), nil, nil
		}
		if project := DetectProject(deps.Config, ""); project != "" {
			return TextResult("pong (project " + project + ")"), nil, nil
		}
		return TextResult("pong"), nil, nil
	}
}
