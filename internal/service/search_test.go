package service

import (
	"context"
	"testing"

	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOptions_RetrievalQuery(t *testing.T) {
	assert.Equal(t, models.DirectedQuery{QueryText: "whale", TopK: models.DefaultDirectedTopK},
		SearchOptions{Query: "  whale "}.RetrievalQuery())
	assert.Equal(t, models.EmotionRankedQuery{SampleSize: 10, TopK: models.DefaultEmotionTopK},
		SearchOptions{Random: true, SampleSize: 10, Query: "ignored"}.RetrievalQuery())
}

func TestRetrieveChunks(t *testing.T) {
	h := newHarness(t, nil)
	svc := NewSearchService(h.store, h.store, h.selector)
	ctx := context.Background()

	results, err := svc.RetrieveChunks(ctx, SearchOptions{DocumentID: document, Query: "whale", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, breachText, results[0].Chunk.Text)
	assert.Equal(t, 0, results[0].Rank)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	results, err = svc.RetrieveChunks(ctx, SearchOptions{DocumentID: document, Random: true, SampleSize: 3, TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, breachText, results[0].Chunk.Text)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
}

func TestRetrieveChunks_Errors(t *testing.T) {
	h := newHarness(t, nil)
	svc := NewSearchService(h.store, h.store, h.selector)
	ctx := context.Background()

	_, err := svc.RetrieveChunks(ctx, SearchOptions{DocumentID: "missing", Query: "whale"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.RetrieveChunks(ctx, SearchOptions{DocumentID: document})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = svc.RetrieveChunks(ctx, SearchOptions{DocumentID: document, Random: true, SampleSize: 5, TopK: 10})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	foreign := seedOtherProject(t, h)
	_, err = svc.RetrieveChunks(ctx, SearchOptions{DocumentID: document, RemixSourceID: foreign})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.RetrieveChunks(ctx, SearchOptions{DocumentID: "doc-2", RemixSourceID: foreign})
	assert.NoError(t, err)
}

func TestListLessonsAndDocuments(t *testing.T) {
	h := newHarness(t, nil)
	svc := NewSearchService(h.store, h.store, h.selector)
	ctx := context.Background()

	job, err := h.coord.Submit(ctx, SubmitRequest{ProjectID: project, DocumentID: document, Query: models.DirectedQuery{QueryText: "whale"}})
	require.NoError(t, err)

	lessons, err := svc.ListLessons(ctx, project)
	require.NoError(t, err)
	require.Len(t, lessons, 3)
	assert.Equal(t, "Breach", lessons[0].Name)
	assert.Equal(t, "Breach opens\nBreach closes", lessons[0].ConsolidatedText())

	one, err := svc.GetLesson(ctx, job.LessonIDs[0])
	require.NoError(t, err)
	assert.Equal(t, job.ID, one.SourceJobID)

	docs, err := svc.ListDocuments(ctx, project)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Moby Dick", docs[0].Title)
}
