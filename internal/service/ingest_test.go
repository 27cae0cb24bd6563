package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raphaelgruber/litlab/internal/chunkstore"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/raphaelgruber/litlab/internal/parser"
	"github.com/raphaelgruber/litlab/internal/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngestService(t *testing.T, embedder BatchEmbedder) (*IngestService, *sqlstore.Store, *chunkstore.Store) {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), filepath.Join(t.TempDir(), "ingest.db"), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	chunks := chunkstore.New(store, nil)
	cfg := parser.ChunkConfig{SizeWords: 80, OverlapWords: 10, MaxChunks: 50}
	return NewIngestService(store, chunks, embedder, cfg), store, chunks
}

func longText(words int) string {
	return strings.TrimSpace(strings.Repeat("ahab ", words))
}

func TestIngestText(t *testing.T) {
	svc, store, chunks := newIngestService(t, &fakeEmbedder{vector: []float32{0.1, 0.2}})
	ctx := context.Background()

	doc, err := svc.IngestText(ctx, IngestRequest{ProjectID: project, Title: " Moby Dick ", Text: longText(200)})
	require.NoError(t, err)
	assert.Equal(t, "Moby Dick", doc.Title)
	// windows start at 0, 70, 140
	assert.Equal(t, 3, doc.ChunkCount)

	stored, err := chunks.Chunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, c := range stored {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, []float32{0.1, 0.2}, c.Embedding)
	}

	got, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, project, got.ProjectID)
}

func TestIngestText_Errors(t *testing.T) {
	svc, store, _ := newIngestService(t, &fakeEmbedder{err: models.ErrEmbeddingUnavailable})
	ctx := context.Background()

	_, err := svc.IngestText(ctx, IngestRequest{ProjectID: project, Title: "blank", Text: " \n "})
	assert.ErrorIs(t, err, models.ErrEmptyCorpus)

	_, err = svc.IngestText(ctx, IngestRequest{Title: "no project", Text: "text"})
	assert.Error(t, err)

	_, err = svc.IngestText(ctx, IngestRequest{ProjectID: project, Title: "offline", Text: "call me ishmael"})
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)

	docs, err := store.ListDocuments(ctx, project)
	require.NoError(t, err)
	assert.Empty(t, docs, "failed ingestion leaves no document")
}

type mismatchedEmbedder struct{}

func (mismatchedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 2+i)
	}
	return out, nil
}

func TestIngestText_DimensionMismatchCleansUp(t *testing.T) {
	svc, store, _ := newIngestService(t, mismatchedEmbedder{})
	ctx := context.Background()

	_, err := svc.IngestText(ctx, IngestRequest{ProjectID: project, Title: "bad", Text: longText(200)})
	require.ErrorIs(t, err, models.ErrDimensionMismatch)

	docs, err := store.ListDocuments(ctx, project)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestDirectory(t *testing.T) {
	svc, _, _ := newIngestService(t, &fakeEmbedder{vector: []float32{1, 0}})
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.md"), []byte("# Chapter One\n\nCall me Ishmael."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.txt"), []byte("Some years ago."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("   "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89}, 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "three.md"), []byte("deep"), 0o600))

	result, err := svc.IngestDirectory(context.Background(), project, dir, false)
	require.NoError(t, err)

	titles := make([]string, 0, len(result.Documents))
	for _, d := range result.Documents {
		titles = append(titles, d.Title)
	}
	assert.ElementsMatch(t, []string{"Chapter One", "two"}, titles)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "empty.txt")

	result, err = svc.IngestDirectory(context.Background(), "proj-2", dir, true)
	require.NoError(t, err)
	assert.Len(t, result.Documents, 3)
}

func TestIngestFile_Missing(t *testing.T) {
	svc, _, _ := newIngestService(t, &fakeEmbedder{vector: []float32{1}})
	_, err := svc.IngestFile(context.Background(), project, filepath.Join(t.TempDir(), "nope.txt"), "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrEmptyCorpus))
}
