package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/litlab/internal/chunkstore"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	seen    []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.seen = append(f.seen, text)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

type textScorer map[string]float64

func (s textScorer) Score(_ context.Context, text string) (float64, error) {
	v, ok := s[text]
	if !ok {
		return 0, errors.New("scoring service error")
	}
	return v, nil
}

type lessonMap map[string]*models.MicroLesson

func (m lessonMap) GetLesson(_ context.Context, id string) (*models.MicroLesson, error) {
	if l, ok := m[id]; ok {
		return l, nil
	}
	return nil, models.ErrNotFound
}

type spySource struct {
	ChunkSource
	samples int
}

func (s *spySource) RandomSample(ctx context.Context, documentID string, n int) ([]models.Chunk, error) {
	s.samples++
	return s.ChunkSource.RandomSample(ctx, documentID, n)
}

func newStore(t *testing.T, doc string, inputs ...models.ChunkInput) *chunkstore.Store {
	t.Helper()
	s := chunkstore.New(chunkstore.NewMemoryRepository(), nil)
	if len(inputs) > 0 {
		_, err := s.Insert(context.Background(), doc, inputs)
		require.NoError(t, err)
	}
	return s
}

func TestEmotionRanked_PicksHighestArousal(t *testing.T) {
	store := newStore(t, "doc",
		models.ChunkInput{Text: "calm harbor", Embedding: []float32{1, 0}},
		models.ChunkInput{Text: "rising wind", Embedding: []float32{0, 1}},
		models.ChunkInput{Text: "ship capsizes", Embedding: []float32{1, 1}},
	)
	scorer := textScorer{"calm harbor": 0.1, "rising wind": 0.4, "ship capsizes": 0.9}
	sel := NewSelector(store, &fakeEmbedder{}, scorer, nil, 4)

	results, err := sel.Retrieve(context.Background(), "doc", models.EmotionRankedQuery{SampleSize: 3, TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ship capsizes", results[0].Chunk.Text)
	assert.Equal(t, 2, results[0].Chunk.Position)
	assert.Equal(t, 0.9, results[0].Score)
}

func TestEmotionRanked_DropsUnscored(t *testing.T) {
	store := newStore(t, "doc",
		models.ChunkInput{Text: "a", Embedding: []float32{1}},
		models.ChunkInput{Text: "b", Embedding: []float32{1}},
		models.ChunkInput{Text: "broken", Embedding: []float32{1}},
		models.ChunkInput{Text: "c", Embedding: []float32{1}},
		models.ChunkInput{Text: "d", Embedding: []float32{1}},
	)
	scorer := textScorer{"a": 0.5, "b": 0.2, "c": 0.9, "d": 0.5}
	sel := NewSelector(store, &fakeEmbedder{}, scorer, nil, 2)

	results, err := sel.Retrieve(context.Background(), "doc", models.EmotionRankedQuery{SampleSize: 5, TopK: 4})
	require.NoError(t, err)
	require.Len(t, results, 4)

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
		assert.Equal(t, i, r.Rank)
	}
	// equal scores keep document order
	assert.Equal(t, []string{"c", "a", "d", "b"}, texts)

	_, err = sel.Retrieve(context.Background(), "doc", models.EmotionRankedQuery{SampleSize: 5, TopK: 5})
	assert.ErrorIs(t, err, models.ErrInsufficientScored)
}

func TestEmotionRanked_SmallCorpusClampsTopK(t *testing.T) {
	store := newStore(t, "doc",
		models.ChunkInput{Text: "a", Embedding: []float32{1}},
		models.ChunkInput{Text: "b", Embedding: []float32{1}},
	)
	sel := NewSelector(store, &fakeEmbedder{}, textScorer{"a": 1, "b": 2}, nil, 2)

	results, err := sel.Retrieve(context.Background(), "doc", models.EmotionRankedQuery{SampleSize: 30, TopK: 8})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestEmotionRanked_SampleSmallerThanTopKRejectedBeforeSampling(t *testing.T) {
	spy := &spySource{ChunkSource: newStore(t, "doc", models.ChunkInput{Text: "a", Embedding: []float32{1}})}
	sel := NewSelector(spy, &fakeEmbedder{}, textScorer{}, nil, 2)

	_, err := sel.Retrieve(context.Background(), "doc", models.EmotionRankedQuery{SampleSize: 5, TopK: 10})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
	assert.Zero(t, spy.samples)
}

func TestEmotionRanked_EmptyCorpus(t *testing.T) {
	sel := NewSelector(newStore(t, "doc"), &fakeEmbedder{}, textScorer{}, nil, 2)
	_, err := sel.Retrieve(context.Background(), "doc", models.EmotionRankedQuery{})
	assert.ErrorIs(t, err, models.ErrEmptyCorpus)
}

func TestDirected_MostSimilarFirst(t *testing.T) {
	store := newStore(t, "doc",
		models.ChunkInput{Text: "one", Embedding: []float32{0, 1, 0}},
		models.ChunkInput{Text: "two", Embedding: []float32{0, 0, 1}},
		models.ChunkInput{Text: "three", Embedding: []float32{0.9, 0.1, 0}},
	)
	emb := &fakeEmbedder{vectors: map[string][]float32{"lighthouse keeper": {1, 0, 0}}}
	sel := NewSelector(store, emb, textScorer{}, nil, 2)

	results, err := sel.Retrieve(context.Background(), "doc", models.DirectedQuery{QueryText: "lighthouse keeper", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "three", results[0].Chunk.Text)
	assert.Equal(t, 0, results[0].Rank)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestDirected_RemixPrependsLessonText(t *testing.T) {
	store := newStore(t, "doc", models.ChunkInput{Text: "x", Embedding: []float32{1, 0, 0}})
	emb := &fakeEmbedder{}
	lessons := lessonMap{"l1": {ID: "l1", Slides: []models.Slide{{Text: "First."}, {Text: "Second."}}}}
	sel := NewSelector(store, emb, textScorer{}, lessons, 2)

	_, err := sel.Retrieve(context.Background(), "doc", models.DirectedQuery{RemixSourceID: "l1", QueryText: "darker"})
	require.NoError(t, err)
	require.Len(t, emb.seen, 1)
	assert.Equal(t, "First.\nSecond.\n\ndarker", emb.seen[0])

	_, err = sel.Retrieve(context.Background(), "doc", models.DirectedQuery{RemixSourceID: "missing"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDirected_Errors(t *testing.T) {
	store := newStore(t, "doc", models.ChunkInput{Text: "x", Embedding: []float32{1, 0, 0}})

	sel := NewSelector(store, &fakeEmbedder{}, textScorer{}, nil, 2)
	_, err := sel.Retrieve(context.Background(), "doc", models.DirectedQuery{QueryText: "  "})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	down := NewSelector(store, &fakeEmbedder{err: errors.New("connection refused")}, textScorer{}, nil, 2)
	_, err = down.Retrieve(context.Background(), "doc", models.DirectedQuery{QueryText: "storm"})
	assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)

	// an empty remixed lesson with no extra text leaves nothing to search for
	empty := NewSelector(store, &fakeEmbedder{}, textScorer{}, lessonMap{"blank": {ID: "blank"}}, 2)
	_, err = empty.Retrieve(context.Background(), "doc", models.DirectedQuery{RemixSourceID: "blank"})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestValidate(t *testing.T) {
	sel := NewSelector(nil, nil, nil, nil, 0)

	assert.NoError(t, sel.Validate(models.DirectedQuery{QueryText: "x"}))
	assert.NoError(t, sel.Validate(models.DirectedQuery{RemixSourceID: "l1"}))
	assert.NoError(t, sel.Validate(models.EmotionRankedQuery{}))
	assert.NoError(t, sel.Validate(models.EmotionRankedQuery{SampleSize: 8, TopK: 8}))
	assert.NoError(t, sel.Validate(models.EmotionRankedQuery{SampleSize: 5}), "topK defaults down to the sample")

	assert.ErrorIs(t, sel.Validate(nil), models.ErrInvalidQuery)
	assert.ErrorIs(t, sel.Validate(models.DirectedQuery{}), models.ErrInvalidQuery)
	assert.ErrorIs(t, sel.Validate(models.DirectedQuery{QueryText: "x", TopK: -1}), models.ErrInvalidQuery)
	assert.ErrorIs(t, sel.Validate(models.EmotionRankedQuery{SampleSize: 5, TopK: 10}), models.ErrInvalidQuery)
	assert.ErrorIs(t, sel.Validate(models.EmotionRankedQuery{SampleSize: 1000, TopK: 8}), models.ErrInvalidQuery)
}
