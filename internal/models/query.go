package models

import (
	"encoding/json"
	"fmt"
)

// Query modes as stored on a lab job.
const (
	QueryModeDirected      = "directed"
	QueryModeEmotionRanked = "emotion_ranked"
)

// Defaults applied when a query leaves its sizes at zero.
const (
	DefaultDirectedTopK  = 6
	DefaultSampleSize    = 30
	DefaultEmotionTopK   = 8
	MaxEmotionSampleSize = 256
)

// RetrievalQuery describes how passages are picked for a lab job.
// The only implementations are DirectedQuery and EmotionRankedQuery.
type RetrievalQuery interface {
	Mode() string
	isRetrievalQuery()
}

// DirectedQuery retrieves passages by semantic similarity to user text,
// to the text of an existing lesson, or to both.
type DirectedQuery struct {
	QueryText     string `json:"query_text,omitempty"`
	RemixSourceID string `json:"remix_source_id,omitempty"`
	TopK          int    `json:"top_k,omitempty"`
}

// EmotionRankedQuery samples random passages and keeps the TopK with the
// highest arousal score.
type EmotionRankedQuery struct {
	SampleSize int `json:"sample_size,omitempty"`
	TopK       int `json:"top_k,omitempty"`
}

func (DirectedQuery) Mode() string      { return QueryModeDirected }
func (EmotionRankedQuery) Mode() string { return QueryModeEmotionRanked }

func (DirectedQuery) isRetrievalQuery()      {}
func (EmotionRankedQuery) isRetrievalQuery() {}

// WithDefaults fills zero sizes.
func (q DirectedQuery) WithDefaults() DirectedQuery {
	if q.TopK == 0 {
		q.TopK = DefaultDirectedTopK
	}
	return q
}

// WithDefaults fills zero sizes. A defaulted TopK never exceeds the sample.
func (q EmotionRankedQuery) WithDefaults() EmotionRankedQuery {
	return q.withDefaults(DefaultSampleSize, DefaultEmotionTopK)
}

// WithDefaultsFrom is WithDefaults with caller-chosen defaults; zero
// defaults fall back to the package ones.
func (q EmotionRankedQuery) WithDefaultsFrom(sampleSize, topK int) EmotionRankedQuery {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if topK <= 0 {
		topK = DefaultEmotionTopK
	}
	return q.withDefaults(sampleSize, topK)
}

func (q EmotionRankedQuery) withDefaults(sampleSize, topK int) EmotionRankedQuery {
	if q.SampleSize == 0 {
		q.SampleSize = sampleSize
	}
	if q.TopK == 0 {
		q.TopK = topK
		if q.SampleSize > 0 {
			q.TopK = min(q.TopK, q.SampleSize)
		}
	}
	return q
}

type queryEnvelope struct {
	Mode          string `json:"mode"`
	QueryText     string `json:"query_text,omitempty"`
	RemixSourceID string `json:"remix_source_id,omitempty"`
	SampleSize    int    `json:"sample_size,omitempty"`
	TopK          int    `json:"top_k,omitempty"`
}

// EncodeQuery serializes a query with an explicit mode tag.
func EncodeQuery(q RetrievalQuery) ([]byte, error) {
	switch v := q.(type) {
	case DirectedQuery:
		return json.Marshal(queryEnvelope{
			Mode:          QueryModeDirected,
			QueryText:     v.QueryText,
			RemixSourceID: v.RemixSourceID,
			TopK:          v.TopK,
		})
	case EmotionRankedQuery:
		return json.Marshal(queryEnvelope{
			Mode:       QueryModeEmotionRanked,
			SampleSize: v.SampleSize,
			TopK:       v.TopK,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported query type %T", ErrInvalidQuery, q)
	}
}

// DecodeQuery restores a query written by EncodeQuery.
func DecodeQuery(data []byte) (RetrievalQuery, error) {
	var env queryEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	switch env.Mode {
	case QueryModeDirected:
		return DirectedQuery{QueryText: env.QueryText, RemixSourceID: env.RemixSourceID, TopK: env.TopK}, nil
	case QueryModeEmotionRanked:
		return EmotionRankedQuery{SampleSize: env.SampleSize, TopK: env.TopK}, nil
	default:
		return nil, fmt.Errorf("%w: unknown query mode %q", ErrInvalidQuery, env.Mode)
	}
}
