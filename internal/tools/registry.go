package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_lab",
		Description: "Start a lab job that turns passages of a document into micro-lessons. Mode 'directed' uses context text and/or a lesson to remix; mode 'random' samples passages and keeps the most emotionally intense",
	}, NewSubmitLabHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lab_status",
		Description: "Get the state of a lab job (queued, processing, succeeded, failed) and its lesson ids",
	}, NewLabStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve_chunks",
		Description: "Return the top passages of a document for a query, or the most emotionally intense of a random sample",
	}, NewRetrieveChunksHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_lessons",
		Description: "List a project's micro-lessons in order",
	}, NewListLessonsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Runtime statistics for embedding, arousal scoring, generation, storage and lab jobs",
	}, NewStatsHandler(deps))
}
