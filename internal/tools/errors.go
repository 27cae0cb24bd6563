package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/litlab/internal/models"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so LLM can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	switch {
	case hint == "":
	case strings.HasSuffix(msg, "."):
		text = msg + " " + hint
	default:
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// JSONResult creates a success result with indented JSON content.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("Failed to encode result", "")
	}
	return TextResult(string(data))
}

// ErrorFor maps a service error to a user-facing result with a hint.
func ErrorFor(err error) *mcp.CallToolResult {
	msg := models.UserMessage(err)
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		return ErrorResult(msg, "Pass context text or remix_source_id for directed mode; sample_size must be at least top_k")
	case errors.Is(err, models.ErrAlreadyRunning):
		return ErrorResult(msg, "Poll lab_status for the running job")
	case errors.Is(err, models.ErrNotFound):
		return ErrorResult(msg, "Check the id")
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return ErrorResult(msg, "Check the embedding provider connection")
	default:
		return ErrorResult(msg, "")
	}
}
