// Package chunkstore holds the embedded passages of ingested documents and
// answers similarity and random-sample queries over them.
package chunkstore

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/models"
)

// Repository persists chunk rows. ListChunks must return chunks ordered by
// ascending position.
type Repository interface {
	ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteChunks(ctx context.Context, documentID string) error
}

// Store serves chunk queries from a per-document cache backed by a Repository.
// Documents are written once at ingestion and read many times afterwards,
// so each document is loaded from the repository at most once.
type Store struct {
	repo    Repository
	metrics *metrics.Collector

	mu    sync.RWMutex
	cache map[string][]models.Chunk
}

// New creates a store over repo. metrics may be nil.
func New(repo Repository, m *metrics.Collector) *Store {
	return &Store{
		repo:    repo,
		metrics: m,
		cache:   make(map[string][]models.Chunk),
	}
}

// Insert appends chunks to a document in the given order. Positions continue
// after any chunks the document already has. All embeddings must share the
// dimension of the document's existing chunks.
func (s *Store) Insert(ctx context.Context, documentID string, inputs []models.ChunkInput) ([]models.Chunk, error) {
	if len(inputs) == 0 {
		return []models.Chunk{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx, documentID)
	if err != nil {
		return nil, err
	}

	dim := len(inputs[0].Embedding)
	if len(existing) > 0 {
		dim = len(existing[0].Embedding)
	}

	now := time.Now()
	created := make([]models.Chunk, 0, len(inputs))
	for i, in := range inputs {
		if len(in.Embedding) == 0 || len(in.Embedding) != dim {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, document uses %d",
				models.ErrDimensionMismatch, i, len(in.Embedding), dim)
		}
		created = append(created, models.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Position:   len(existing) + i,
			Text:       in.Text,
			Embedding:  in.Embedding,
			CreatedAt:  now,
		})
	}

	if err := s.repo.InsertChunks(ctx, created); err != nil {
		return nil, fmt.Errorf("insert chunks: %w", err)
	}

	merged := make([]models.Chunk, 0, len(existing)+len(created))
	merged = append(merged, existing...)
	merged = append(merged, created...)
	s.cache[documentID] = merged

	slog.Debug("chunks inserted", "document_id", documentID, "count", len(created), "total", len(merged))
	return created, nil
}

// SimilaritySearch returns the topK chunks most similar to query by cosine
// similarity, highest first. Equal scores are ordered by ascending position.
// topK larger than the corpus is clamped to the corpus size.
func (s *Store) SimilaritySearch(ctx context.Context, documentID string, query []float32, topK int) ([]models.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", models.ErrInvalidQuery, topK)
	}

	start := time.Now()
	chunks, err := s.Chunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyCorpus, documentID)
	}
	if len(query) != len(chunks[0].Embedding) {
		return nil, fmt.Errorf("%w: query has %d dimensions, document uses %d",
			models.ErrDimensionMismatch, len(query), len(chunks[0].Embedding))
	}

	scored := make([]models.ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = models.ScoredChunk{Chunk: c, Score: Cosine(query, c.Embedding)}
	}
	Rank(scored)

	if topK < len(scored) {
		scored = scored[:topK]
	}

	s.metrics.RecordTiming(metrics.OpChunkSearch, time.Since(start))
	return scored, nil
}

// RandomSample draws n distinct chunks uniformly without replacement. When the
// document has fewer than n chunks every chunk is returned exactly once.
// Each call uses fresh randomness.
func (s *Store) RandomSample(ctx context.Context, documentID string, n int) ([]models.Chunk, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: sample size must be positive, got %d", models.ErrInvalidQuery, n)
	}

	chunks, err := s.Chunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyCorpus, documentID)
	}

	idx := sampleIndexes(len(chunks), min(n, len(chunks)))
	sample := make([]models.Chunk, len(idx))
	for i, j := range idx {
		sample[i] = chunks[j]
	}
	return sample, nil
}

// sampleIndexes draws n distinct indexes from [0, total) with a partial
// Fisher-Yates shuffle. Swaps are kept in a map so only n slots are touched.
func sampleIndexes(total, n int) []int {
	swapped := make(map[int]int, n)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	out := make([]int, n)
	for i := range n {
		j := i + rand.IntN(total-i)
		out[i] = at(j)
		swapped[j] = at(i)
	}
	return out
}

// Chunks returns all chunks of a document ordered by position.
// The returned slice must not be modified.
func (s *Store) Chunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	s.mu.RLock()
	chunks, ok := s.cache[documentID]
	s.mu.RUnlock()
	if ok {
		return chunks, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, documentID)
}

// Count returns the number of chunks of a document.
func (s *Store) Count(ctx context.Context, documentID string) (int, error) {
	chunks, err := s.Chunks(ctx, documentID)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// DeleteDocument removes every chunk of a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteChunks(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	delete(s.cache, documentID)
	return nil
}

// loadLocked fills the cache for a document. Caller must hold the write lock.
func (s *Store) loadLocked(ctx context.Context, documentID string) ([]models.Chunk, error) {
	if chunks, ok := s.cache[documentID]; ok {
		return chunks, nil
	}

	start := time.Now()
	chunks, err := s.repo.ListChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	slices.SortFunc(chunks, func(a, b models.Chunk) int { return cmp.Compare(a.Position, b.Position) })

	// Empty documents are not cached so a later ingestion is picked up.
	if len(chunks) > 0 {
		s.cache[documentID] = chunks
	}
	s.metrics.RecordTiming(metrics.OpChunkLoad, time.Since(start))
	return chunks, nil
}

// Rank sorts scored chunks by descending score with ascending position as
// the tie-break, then assigns 0-based ranks.
func Rank(scored []models.ScoredChunk) {
	slices.SortStableFunc(scored, func(a, b models.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Position, b.Chunk.Position)
	})
	for i := range scored {
		scored[i].Rank = i
	}
}
