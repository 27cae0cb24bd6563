// Package llm provides embedding and lesson generation on top of langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/litlab/internal/config"
	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"
)

const (
	embedBatchSize        = 32
	embedBatchConcurrency = 4
)

// Embedder wraps langchaingo embeddings with dimension validation.
type Embedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
	metrics   *metrics.Collector
}

// NewEmbedder creates an embedder based on configuration.
func NewEmbedder(cfg config.Config, m *metrics.Collector) (*Embedder, error) {
	var model embeddings.Embedder
	var err error

	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		llm, ollamaErr := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if ollamaErr != nil {
			return nil, fmt.Errorf("create ollama client: %w", ollamaErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, openaiErr := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if openaiErr != nil {
			return nil, fmt.Errorf("create openai client: %w", openaiErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}

	return NewEmbedderFrom(model, cfg.EmbedModel, cfg.EmbedDimension, m), nil
}

// NewEmbedderFrom wraps an existing langchaingo embedder.
func NewEmbedderFrom(model embeddings.Embedder, modelName string, dimension int, m *metrics.Collector) *Embedder {
	return &Embedder{
		model:     model,
		dimension: dimension,
		modelName: modelName,
		metrics:   m,
	}
}

// Embed generates an embedding vector for text. Provider failures wrap
// models.ErrEmbeddingUnavailable; no retry is attempted.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	slog.Debug("embedding text", "model", e.modelName, "text_len", textLen)

	start := time.Now()
	vector, err := e.model.EmbedQuery(ctx, text)
	duration := time.Since(start)

	if err != nil {
		e.metrics.RecordFailure(metrics.OpEmbedding)
		slog.Warn("embedding failed", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, classifyProviderError(err))
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", models.ErrEmbeddingUnavailable)
	}
	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", models.ErrDimensionMismatch, len(vector), e.dimension)
	}

	e.metrics.RecordTiming(metrics.OpEmbedding, duration)
	slog.Debug("embedding complete", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds())
	return vector, nil
}

// EmbedBatch generates embeddings for many texts, sending fixed-size
// batches with bounded parallelism. Output order matches input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedBatchConcurrency)

	for lo := 0; lo < len(texts); lo += embedBatchSize {
		hi := min(lo+embedBatchSize, len(texts))
		g.Go(func() error {
			start := time.Now()
			vectors, err := e.model.EmbedDocuments(gctx, texts[lo:hi])
			if err != nil {
				e.metrics.RecordFailure(metrics.OpEmbedding)
				return fmt.Errorf("%w: embed batch %d-%d: %w", models.ErrEmbeddingUnavailable, lo, hi, classifyProviderError(err))
			}
			if len(vectors) != hi-lo {
				return fmt.Errorf("count mismatch: got %d, want %d", len(vectors), hi-lo)
			}
			for i, v := range vectors {
				if e.dimension > 0 && len(v) != e.dimension {
					return fmt.Errorf("%w: embedding %d got %d, want %d", models.ErrDimensionMismatch, lo+i, len(v), e.dimension)
				}
				out[lo+i] = v
			}
			e.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}
