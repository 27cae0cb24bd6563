package chunkstore

import (
	"context"
	"sync"

	"github.com/raphaelgruber/litlab/internal/models"
)

// MemoryRepository keeps chunks in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	chunks map[string][]models.Chunk
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{chunks: make(map[string][]models.Chunk)}
}

func (r *MemoryRepository) ListChunks(_ context.Context, documentID string) ([]models.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Chunk, len(r.chunks[documentID]))
	copy(out, r.chunks[documentID])
	return out, nil
}

func (r *MemoryRepository) InsertChunks(_ context.Context, chunks []models.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.chunks[c.DocumentID] = append(r.chunks[c.DocumentID], c)
	}
	return nil
}

func (r *MemoryRepository) DeleteChunks(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chunks, documentID)
	return nil
}
