// Package retrieval resolves a retrieval query into an ordered set of passages.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/litlab/internal/arousal"
	"github.com/raphaelgruber/litlab/internal/chunkstore"
	"github.com/raphaelgruber/litlab/internal/models"
)

// ChunkSource is the subset of the chunk store the selector reads from.
type ChunkSource interface {
	SimilaritySearch(ctx context.Context, documentID string, query []float32, topK int) ([]models.ScoredChunk, error)
	RandomSample(ctx context.Context, documentID string, n int) ([]models.Chunk, error)
}

// Embedder embeds query text with the same model used at ingestion.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LessonSource looks up existing lessons for remix queries. GetLesson
// returns models.ErrNotFound for unknown ids.
type LessonSource interface {
	GetLesson(ctx context.Context, id string) (*models.MicroLesson, error)
}

// Selector implements directed and emotion-ranked retrieval.
type Selector struct {
	chunks      ChunkSource
	embedder    Embedder
	scorer      arousal.Scorer
	lessons     LessonSource
	concurrency int
}

// NewSelector wires a selector. concurrency bounds parallel arousal calls;
// zero uses arousal.DefaultConcurrency.
func NewSelector(chunks ChunkSource, embedder Embedder, scorer arousal.Scorer, lessons LessonSource, concurrency int) *Selector {
	if concurrency <= 0 {
		concurrency = arousal.DefaultConcurrency
	}
	return &Selector{
		chunks:      chunks,
		embedder:    embedder,
		scorer:      scorer,
		lessons:     lessons,
		concurrency: concurrency,
	}
}

// Validate checks the shape of a query without touching any dependency.
func (s *Selector) Validate(q models.RetrievalQuery) error {
	switch v := q.(type) {
	case models.DirectedQuery:
		if strings.TrimSpace(v.QueryText) == "" && strings.TrimSpace(v.RemixSourceID) == "" {
			return fmt.Errorf("%w: directed query needs query text or a remix source", models.ErrInvalidQuery)
		}
		if v.TopK < 0 {
			return fmt.Errorf("%w: topK must not be negative", models.ErrInvalidQuery)
		}
		return nil

	case models.EmotionRankedQuery:
		v = v.WithDefaults()
		if v.SampleSize < 0 || v.TopK < 0 {
			return fmt.Errorf("%w: sizes must not be negative", models.ErrInvalidQuery)
		}
		if v.SampleSize < v.TopK {
			return fmt.Errorf("%w: sample size %d is smaller than topK %d", models.ErrInvalidQuery, v.SampleSize, v.TopK)
		}
		if v.SampleSize > models.MaxEmotionSampleSize {
			return fmt.Errorf("%w: sample size %d exceeds %d", models.ErrInvalidQuery, v.SampleSize, models.MaxEmotionSampleSize)
		}
		return nil

	case nil:
		return fmt.Errorf("%w: no query", models.ErrInvalidQuery)

	default:
		return fmt.Errorf("%w: unsupported query type %T", models.ErrInvalidQuery, q)
	}
}

// Retrieve returns the passages selected by q for a document, ordered by
// descending score with ascending position breaking ties.
func (s *Selector) Retrieve(ctx context.Context, documentID string, q models.RetrievalQuery) ([]models.ScoredChunk, error) {
	if err := s.Validate(q); err != nil {
		return nil, err
	}

	switch v := q.(type) {
	case models.DirectedQuery:
		return s.directed(ctx, documentID, v.WithDefaults())
	case models.EmotionRankedQuery:
		return s.emotionRanked(ctx, documentID, v.WithDefaults())
	}
	return nil, fmt.Errorf("%w: unsupported query type %T", models.ErrInvalidQuery, q)
}

func (s *Selector) directed(ctx context.Context, documentID string, q models.DirectedQuery) ([]models.ScoredChunk, error) {
	text, err := s.directedText(ctx, q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}

	results, err := s.chunks.SimilaritySearch(ctx, documentID, embedding, q.TopK)
	if err != nil {
		return nil, err
	}

	slog.Debug("directed retrieval complete",
		"document_id", documentID,
		"remix", q.RemixSourceID != "",
		"query_len", len(text),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return results, nil
}

// directedText builds the similarity query: the remixed lesson's text first,
// then the user's text.
func (s *Selector) directedText(ctx context.Context, q models.DirectedQuery) (string, error) {
	var parts []string

	if id := strings.TrimSpace(q.RemixSourceID); id != "" {
		if s.lessons == nil {
			return "", fmt.Errorf("%w: lesson %s", models.ErrNotFound, id)
		}
		lesson, err := s.lessons.GetLesson(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load remix source: %w", err)
		}
		if lesson == nil {
			return "", fmt.Errorf("%w: lesson %s", models.ErrNotFound, id)
		}
		if t := lesson.ConsolidatedText(); t != "" {
			parts = append(parts, t)
		}
	}
	if t := strings.TrimSpace(q.QueryText); t != "" {
		parts = append(parts, t)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: query text is empty", models.ErrInvalidQuery)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (s *Selector) emotionRanked(ctx context.Context, documentID string, q models.EmotionRankedQuery) ([]models.ScoredChunk, error) {
	sample, err := s.chunks.RandomSample(ctx, documentID, q.SampleSize)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(sample))
	for i, c := range sample {
		texts[i] = c.Text
	}

	start := time.Now()
	results := arousal.ScoreBatch(ctx, s.scorer, texts, s.concurrency)

	scored := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Scored {
			scored = append(scored, models.ScoredChunk{Chunk: sample[r.Index], Score: r.Score})
		}
	}

	need := min(q.TopK, len(sample))
	if len(scored) < need {
		return nil, fmt.Errorf("%w: %d of %d sampled passages scored, need %d",
			models.ErrInsufficientScored, len(scored), len(sample), need)
	}

	chunkstore.Rank(scored)
	if len(scored) > q.TopK {
		scored = scored[:q.TopK]
	}

	slog.Info("emotion-ranked retrieval complete",
		"document_id", documentID,
		"sampled", len(sample),
		"scored", arousal.CountScored(results),
		"kept", len(scored),
		"duration_ms", time.Since(start).Milliseconds())
	return scored, nil
}
