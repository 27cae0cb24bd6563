// Package arousal scores passages for predicted emotional intensity.
package arousal

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// MinScore is the score assigned to empty passages. The regression model
// never produces values this low for real text.
const MinScore = -5.0

// DefaultConcurrency bounds in-flight scoring calls per batch.
const DefaultConcurrency = 12

var errPanic = errors.New("arousal scorer panicked")

// Scorer maps a passage to a scalar arousal score.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Result is the outcome for one passage of a batch.
type Result struct {
	Index  int
	Score  float64
	Scored bool
	Err    error
}

// ScoreBatch scores texts with at most concurrency calls in flight.
// Results are returned in input order. A failure marks only its own item as
// unscored; once ctx is done the remaining items are marked unscored too.
func ScoreBatch(ctx context.Context, scorer Scorer, texts []string, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(texts))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, text := range texts {
		results[i].Index = i
		if strings.TrimSpace(text) == "" {
			results[i].Score = MinScore
			results[i].Scored = true
			continue
		}

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("arousal scorer panicked", "index", i, "panic", r)
					results[i].Err = errPanic
				}
			}()

			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			score, err := scorer.Score(ctx, text)
			if err != nil {
				slog.Warn("arousal scoring failed", "index", i, "error", err)
				results[i].Err = err
				return nil
			}
			results[i].Score = score
			results[i].Scored = true
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CountScored returns how many results carry a score.
func CountScored(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Scored {
			n++
		}
	}
	return n
}
