package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/litlab/internal/service"
)

// RetrieveChunksInput defines the input schema for the retrieve_chunks tool.
type RetrieveChunksInput struct {
	DocumentID    string `json:"document_id" jsonschema:"required,Document to search"`
	Query         string `json:"query,omitempty" jsonschema:"Text to match passages against"`
	RemixSourceID string `json:"remix_source_id,omitempty" jsonschema:"Lesson id whose text is used as the query"`
	Random        bool   `json:"random,omitempty" jsonschema:"Sample passages and rank them by emotional intensity instead"`
	SampleSize    int    `json:"sample_size,omitempty" jsonschema:"Random mode: passages to sample, default 30"`
	TopK          int    `json:"top_k,omitempty" jsonschema:"Passages to return"`
}

// ChunkView is one ranked passage.
type ChunkView struct {
	Rank     int     `json:"rank"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// RetrieveChunksResult is the retrieve_chunks output.
type RetrieveChunksResult struct {
	Mode   string      `json:"mode"`
	Chunks []ChunkView `json:"chunks"`
	Count  int         `json:"count"`
}

// NewRetrieveChunksHandler creates the retrieve_chunks tool handler.
func NewRetrieveChunksHandler(deps *Dependencies) mcp.ToolHandlerFor[RetrieveChunksInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RetrieveChunksInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.DocumentID) == "" {
			return ErrorResult("document_id is required", "Ingest a document first and pass its id"), nil, nil
		}
		if !input.Random && strings.TrimSpace(input.Query) == "" && strings.TrimSpace(input.RemixSourceID) == "" {
			return ErrorResult("Query cannot be empty", "Provide query, remix_source_id or set random"), nil, nil
		}

		opts := service.SearchOptions{
			DocumentID:    input.DocumentID,
			Query:         input.Query,
			RemixSourceID: input.RemixSourceID,
			Random:        input.Random,
			SampleSize:    input.SampleSize,
			TopK:          input.TopK,
		}
		results, err := deps.Search.RetrieveChunks(ctx, opts)
		if err != nil {
			deps.Logger.Error("retrieve_chunks failed", "document_id", input.DocumentID, "error", err)
			return ErrorFor(err), nil, nil
		}

		out := RetrieveChunksResult{Mode: opts.RetrievalQuery().Mode(), Chunks: make([]ChunkView, len(results)), Count: len(results)}
		for i, r := range results {
			out.Chunks[i] = ChunkView{Rank: r.Rank, Position: r.Chunk.Position, Score: r.Score, Text: r.Chunk.Text}
		}

		queryLog := input.Query
		if len(queryLog) > 30 {
			queryLog = queryLog[:30] + "..."
		}
		deps.Logger.Info("retrieve_chunks", "document_id", input.DocumentID, "mode", out.Mode, "query", queryLog, "results", out.Count)
		return JSONResult(out), nil, nil
	}
}
