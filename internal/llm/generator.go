package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raphaelgruber/litlab/internal/models"
)

const (
	maxPromptPassages = 8
	passageSeparator  = "\n\n---\n"
	defaultAttempts   = 3
)

// Completer produces a JSON completion for a system and user prompt.
// *Model implements it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerationRequest carries the selected passages and user direction.
type GenerationRequest struct {
	Passages      []string
	Direction     string
	ReferenceName string // lesson whose tone and pacing should be mirrored
	MaxLessons    int    // 0 keeps every usable draft
}

// LessonGenerator turns passages into micro-lesson drafts.
type LessonGenerator struct {
	completer    Completer
	attempts     uint64
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NewLessonGenerator creates a generator that retries transient failures
// with exponential backoff between 1s and 8s.
func NewLessonGenerator(c Completer) *LessonGenerator {
	return &LessonGenerator{
		completer:    c,
		attempts:     defaultAttempts,
		initialDelay: time.Second,
		maxDelay:     8 * time.Second,
	}
}

// Generate returns lesson drafts for req. Drafts without any non-empty slide
// are discarded. Provider errors and output with no usable draft wrap
// models.ErrGenerationFailed.
func (g *LessonGenerator) Generate(ctx context.Context, req GenerationRequest) ([]models.LessonDraft, error) {
	passages := trimPassages(req.Passages)
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: no passages to generate from", models.ErrGenerationFailed)
	}
	userPrompt := buildUserPrompt(passages, req.Direction, req.ReferenceName)

	var drafts []models.LessonDraft
	attempt := 0
	op := func() error {
		attempt++
		raw, err := g.completer.Complete(ctx, lessonSystemPrompt, userPrompt)
		if err != nil {
			if errors.Is(err, ErrFatalAPI) {
				return backoff.Permanent(err)
			}
			slog.Warn("generation attempt failed", "attempt", attempt, "rate_limited", errors.Is(err, ErrRateLimited), "error", err)
			return err
		}
		parsed, err := parseDrafts(raw)
		if err != nil {
			slog.Warn("unusable generation output", "attempt", attempt, "error", err)
			return err
		}
		drafts = parsed
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = g.initialDelay
	eb.MaxInterval = g.maxDelay
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, g.attempts-1), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("%w: after %d attempts: %w", models.ErrGenerationFailed, attempt, err)
	}

	if req.MaxLessons > 0 && len(drafts) > req.MaxLessons {
		drafts = drafts[:req.MaxLessons]
	}
	slog.Info("lessons generated", "drafts", len(drafts), "attempts", attempt, "passages", len(passages))
	return drafts, nil
}

func trimPassages(passages []string) []string {
	out := make([]string, 0, min(len(passages), maxPromptPassages))
	for _, p := range passages {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
		if len(out) == maxPromptPassages {
			break
		}
	}
	return out
}

var errNoDrafts = errors.New("no usable lesson in output")

// parseDrafts decodes {"lessons":[...]} and keeps drafts that have a name
// and at least one non-empty slide. Code fences and surrounding prose are
// tolerated.
func parseDrafts(raw string) ([]models.LessonDraft, error) {
	body := raw
	if i, j := strings.Index(body, "{"), strings.LastIndex(body, "}"); i >= 0 && j > i {
		body = body[i : j+1]
	}

	var payload struct {
		Lessons  []models.LessonDraft `json:"lessons"`
		Concepts []models.LessonDraft `json:"concepts"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	candidates := payload.Lessons
	if len(candidates) == 0 {
		candidates = payload.Concepts
	}

	drafts := make([]models.LessonDraft, 0, len(candidates))
	for _, d := range candidates {
		slides := make([]string, 0, len(d.Slides))
		for _, s := range d.Slides {
			if s = strings.TrimSpace(s); s != "" {
				slides = append(slides, s)
			}
		}
		if len(slides) == 0 || strings.TrimSpace(d.Name) == "" {
			continue
		}
		d.Slides = slides
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return nil, errNoDrafts
	}
	return drafts, nil
}
