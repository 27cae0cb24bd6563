package arousal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	scores   map[string]float64
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (s *stubScorer) Score(_ context.Context, text string) (float64, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if text == "fail" {
		return 0, errors.New("model unavailable")
	}
	if text == "panic" {
		panic("boom")
	}
	return s.scores[text], nil
}

func TestScoreBatch_IsolatesFailures(t *testing.T) {
	s := &stubScorer{scores: map[string]float64{"a": 0.1, "b": 0.2, "c": 0.3, "d": 0.4}}
	results := ScoreBatch(context.Background(), s, []string{"a", "b", "fail", "c", "d"}, 2)

	require.Len(t, results, 5)
	assert.Equal(t, 4, CountScored(results))
	assert.False(t, results[2].Scored)
	assert.Error(t, results[2].Err)
	assert.Equal(t, 0.4, results[4].Score)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
}

func TestScoreBatch_EmptyTextGetsMinScore(t *testing.T) {
	s := &stubScorer{}
	results := ScoreBatch(context.Background(), s, []string{"", "   "}, 4)

	for _, r := range results {
		assert.True(t, r.Scored)
		assert.Equal(t, MinScore, r.Score)
	}
	assert.Zero(t, s.calls.Load())
}

func TestScoreBatch_RecoversPanics(t *testing.T) {
	s := &stubScorer{scores: map[string]float64{"ok": 1}}
	results := ScoreBatch(context.Background(), s, []string{"panic", "ok"}, 2)

	assert.False(t, results[0].Scored)
	assert.True(t, results[1].Scored)
}

func TestScoreBatch_BoundsConcurrency(t *testing.T) {
	s := &stubScorer{scores: map[string]float64{}}
	texts := make([]string, 40)
	for i := range texts {
		texts[i] = "x"
	}
	ScoreBatch(context.Background(), s, texts, 3)
	assert.LessOrEqual(t, s.peak.Load(), int32(3))
	assert.Equal(t, int32(40), s.calls.Load())
}

func TestScoreBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &stubScorer{scores: map[string]float64{"a": 1}}
	results := ScoreBatch(ctx, s, []string{"a", "a"}, 1)
	assert.Equal(t, 0, CountScored(results))
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
