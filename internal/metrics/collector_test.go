package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpArousal, 10*time.Millisecond)
	c.RecordTiming(OpArousal, 30*time.Millisecond)

	snap := c.Snapshot()
	op, ok := snap.Op(OpArousal)
	require.True(t, ok)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(10), op.MinTimeMs)
	assert.Equal(t, int64(30), op.MaxTimeMs)
	assert.InDelta(t, 20.0, op.AvgTimeMs, 0.001)

	_, ok = snap.Op(OpEmbedding)
	assert.False(t, ok)
}

func TestCollector_RecordFailure(t *testing.T) {
	c := NewCollector()
	c.RecordFailure(OpEmbedding)

	op, ok := c.Snapshot().Op(OpEmbedding)
	require.True(t, ok)
	assert.Equal(t, int64(1), op.Failures)
	assert.Zero(t, op.Count)
	assert.Zero(t, op.MinTimeMs)
}

func TestCollector_RecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 100, 40)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 300, 60)
	c.RecordLLMUsage(OpArousal, time.Second, 5, 5)

	snap := c.Snapshot()
	gen, _ := snap.Op(OpLLMGenerate)
	assert.Equal(t, int64(400), gen.InputTokens)
	assert.Equal(t, int64(100), gen.OutputTokens)

	arousal, _ := snap.Op(OpArousal)
	assert.Zero(t, arousal.InputTokens, "tokens are only reported for generation")
}

func TestCollector_Time(t *testing.T) {
	c := NewCollector()
	errMissing := errors.New("missing")
	isMissing := func(err error) bool { return errors.Is(err, errMissing) }

	require.NoError(t, c.Time(OpDBQuery, func() error { return nil }))
	assert.ErrorIs(t, c.Time(OpDBQuery, func() error { return errMissing }, isMissing), errMissing)
	assert.Error(t, c.Time(OpDBQuery, func() error { return errors.New("boom") }, isMissing))

	op, _ := c.Snapshot().Op(OpDBQuery)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(1), op.Failures)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpChunkSearch, time.Millisecond)
		}()
	}
	wg.Wait()

	op, _ := c.Snapshot().Op(OpChunkSearch)
	assert.Equal(t, int64(50), op.Count)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpDBQuery, time.Millisecond)
		c.RecordFailure(OpDBQuery)
		c.RecordLLMUsage(OpLLMGenerate, time.Millisecond, 1, 1)
		_ = c.Time(OpDBQuery, func() error { return nil })
	})
}
