package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuery_TagsMode(t *testing.T) {
	data, err := EncodeQuery(EmotionRankedQuery{SampleSize: 30, TopK: 8})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"emotion_ranked","sample_size":30,"top_k":8}`, string(data))

	decoded, err := DecodeQuery([]byte(`{"mode":"directed","query_text":"harbor at dawn","top_k":4}`))
	require.NoError(t, err)
	dq, ok := decoded.(DirectedQuery)
	require.True(t, ok, "expected DirectedQuery, got %T", decoded)
	assert.Equal(t, "harbor at dawn", dq.QueryText)
	assert.Equal(t, 4, dq.TopK)
}

func TestDecodeQuery_UnknownMode(t *testing.T) {
	_, err := DecodeQuery([]byte(`{"mode":"random","top_k":3}`))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = DecodeQuery([]byte(`not json`))
	assert.Error(t, err)
}

func TestQueryDefaults(t *testing.T) {
	assert.Equal(t, DefaultDirectedTopK, DirectedQuery{QueryText: "x"}.WithDefaults().TopK)

	e := EmotionRankedQuery{}.WithDefaults()
	assert.Equal(t, DefaultSampleSize, e.SampleSize)
	assert.Equal(t, DefaultEmotionTopK, e.TopK)

	kept := EmotionRankedQuery{SampleSize: 5, TopK: 10}.WithDefaults()
	assert.Equal(t, 5, kept.SampleSize)
	assert.Equal(t, 10, kept.TopK, "explicit sizes are never clamped")

	small := EmotionRankedQuery{SampleSize: 5}.WithDefaults()
	assert.Equal(t, 5, small.TopK, "defaulted topK is clamped to the sample")

	custom := EmotionRankedQuery{}.WithDefaultsFrom(33, 40)
	assert.Equal(t, 33, custom.SampleSize)
	assert.Equal(t, 33, custom.TopK)

	fallback := EmotionRankedQuery{SampleSize: 12}.WithDefaultsFrom(0, 0)
	assert.Equal(t, DefaultEmotionTopK, fallback.TopK)
}

func TestConsolidatedText_SkipsEmptySlides(t *testing.T) {
	l := MicroLesson{Slides: []Slide{
		{Position: 0, Text: "The tide turned."},
		{Position: 1, Text: "   "},
		{Position: 2, Text: "Nobody noticed."},
	}}
	assert.Equal(t, "The tide turned.\nNobody noticed.", l.ConsolidatedText())
	assert.Empty(t, (&MicroLesson{}).ConsolidatedText())
}

func TestLessonDraft_ToLesson(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := LessonDraft{Name: " Storm ", Description: "desc", Slides: []string{"one", "", "two"}}

	l := d.ToLesson("l1", "p1", "j1", 7, now)
	assert.Equal(t, "Storm", l.Name)
	assert.Equal(t, 7, l.OrderIndex)
	assert.Equal(t, "j1", l.SourceJobID)
	require.Len(t, l.Slides, 2)
	assert.Equal(t, Slide{Position: 1, Text: "two"}, l.Slides[1])
}

func TestJobState_IsTerminal(t *testing.T) {
	assert.False(t, JobStateQueued.IsTerminal())
	assert.False(t, JobStateProcessing.IsTerminal())
	assert.True(t, JobStateSucceeded.IsTerminal())
	assert.True(t, JobStateFailed.IsTerminal())
}

func TestUserMessage(t *testing.T) {
	wrapped := fmt.Errorf("retrieve: %w", ErrInsufficientScored)
	assert.Equal(t, "Not enough passages could be rated. Please try again.", UserMessage(wrapped))
	assert.Equal(t, "", UserMessage(nil))

	generic := UserMessage(errors.New("dial tcp: connection refused"))
	assert.NotContains(t, generic, "dial tcp")
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown(fmt.Errorf("load: %w", ErrNotFound)))
	assert.False(t, IsKnown(errors.New("dial tcp: connection refused")))
	assert.False(t, IsKnown(nil))
}
