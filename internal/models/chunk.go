package models

import "time"

// Chunk is a fixed passage of source text with its embedding.
// Chunks are immutable after ingestion and are deleted only together
// with their document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"` // 0-based order within the document
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkInput is one passage handed to the chunk store at ingestion time.
type ChunkInput struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// ScoredChunk is a chunk annotated with the score that ranked it.
// Score is cosine similarity for directed retrieval and arousal for
// emotion-ranked retrieval.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Document groups the chunks ingested from one source file.
type Document struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
