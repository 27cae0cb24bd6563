package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/litlab/internal/models"
)

// SearchService answers read-only passage and lesson queries.
type SearchService struct {
	docs      DocumentStore
	lessons   LessonStore
	retriever Retriever
}

// NewSearchService creates a new search service.
func NewSearchService(docs DocumentStore, lessons LessonStore, retriever Retriever) *SearchService {
	return &SearchService{
		docs:      docs,
		lessons:   lessons,
		retriever: retriever,
	}
}

// SearchOptions configures a passage retrieval.
type SearchOptions struct {
	DocumentID string
	// Query selects directed retrieval; empty with Random unset is invalid.
	Query         string
	RemixSourceID string
	// Random selects emotion-ranked retrieval.
	Random     bool
	SampleSize int
	TopK       int
}

// RetrievalQuery builds the retrieval query described by the options.
func (o SearchOptions) RetrievalQuery() models.RetrievalQuery {
	if o.Random {
		return models.EmotionRankedQuery{SampleSize: o.SampleSize, TopK: o.TopK}.WithDefaults()
	}
	return models.DirectedQuery{
		QueryText:     strings.TrimSpace(o.Query),
		RemixSourceID: strings.TrimSpace(o.RemixSourceID),
		TopK:          o.TopK,
	}.WithDefaults()
}

// RetrieveChunks returns the ranked passages for a document without
// creating a job.
func (s *SearchService) RetrieveChunks(ctx context.Context, opts SearchOptions) ([]models.ScoredChunk, error) {
	doc, err := s.docs.GetDocument(ctx, opts.DocumentID)
	if err != nil {
		return nil, err
	}
	if id := strings.TrimSpace(opts.RemixSourceID); id != "" && !opts.Random {
		lesson, err := s.lessons.GetLesson(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load remix source: %w", err)
		}
		if lesson.ProjectID != doc.ProjectID {
			return nil, fmt.Errorf("load remix source: %w: lesson %s in project %s", models.ErrNotFound, id, doc.ProjectID)
		}
	}

	q := opts.RetrievalQuery()
	results, err := s.retriever.Retrieve(ctx, opts.DocumentID, q)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", q.Mode(), err)
	}
	slog.Debug("chunks retrieved", "document_id", opts.DocumentID, "mode", q.Mode(), "results", len(results))
	return results, nil
}

// ListLessons returns a project's lessons in order.
func (s *SearchService) ListLessons(ctx context.Context, projectID string) ([]models.MicroLesson, error) {
	return s.lessons.ListLessons(ctx, projectID)
}

// GetLesson returns one lesson.
func (s *SearchService) GetLesson(ctx context.Context, id string) (*models.MicroLesson, error) {
	return s.lessons.GetLesson(ctx, id)
}

// ListDocuments returns a project's ingested documents.
func (s *SearchService) ListDocuments(ctx context.Context, projectID string) ([]models.Document, error) {
	return s.docs.ListDocuments(ctx, projectID)
}
