// Package service provides business logic for lab jobs and ingestion.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/litlab/internal/llm"
	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/models"
)

// maxRandomLessons caps the drafts kept from an emotion-ranked job.
const maxRandomLessons = 2

// DefaultStaleAfter is how long a job may sit queued or processing before
// RecoverStale fails it.
const DefaultStaleAfter = 15 * time.Minute

const staleMessage = "The lab job timed out. Please submit it again."

// persistTimeout bounds terminal writes made after the caller's context is
// gone.
const persistTimeout = 10 * time.Second

// Retriever selects passages for a query.
type Retriever interface {
	Validate(q models.RetrievalQuery) error
	Retrieve(ctx context.Context, documentID string, q models.RetrievalQuery) ([]models.ScoredChunk, error)
}

// Generator turns passages into lesson drafts.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerationRequest) ([]models.LessonDraft, error)
}

// Enqueuer hands job ids to the async worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// LabStore is the persistence a Coordinator needs.
type LabStore interface {
	JobStore
	LessonStore
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// CoordinatorConfig holds query defaults applied at submit time.
type CoordinatorConfig struct {
	DirectedTopK int
	SampleSize   int
	RandomTopK   int
	// RandomPrompt is the generation direction for emotion-ranked jobs
	// submitted without one.
	RandomPrompt string
	// StaleAfter is the RecoverStale threshold Submit uses when a stale job
	// still holds the project. Zero uses DefaultStaleAfter.
	StaleAfter time.Duration
}

// SubmitRequest asks for a new lab job.
type SubmitRequest struct {
	ProjectID  string
	DocumentID string
	Query      models.RetrievalQuery
	Direction  string
}

// Coordinator runs lab jobs through queued, processing and a terminal state.
type Coordinator struct {
	store     LabStore
	retriever Retriever
	generator Generator
	queue     Enqueuer
	cfg       CoordinatorConfig
	metrics   *metrics.Collector
	log       *slog.Logger
	now       func() time.Time
}

// NewCoordinator creates a coordinator. queue, m and log may be nil; without
// a queue every submitted job runs inline.
func NewCoordinator(store LabStore, retriever Retriever, generator Generator, queue Enqueuer, cfg CoordinatorConfig, m *metrics.Collector, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:     store,
		retriever: retriever,
		generator: generator,
		queue:     queue,
		cfg:       cfg,
		metrics:   m,
		log:       log.With("component", "coordinator"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the request and creates a queued job for the project
// that owns the document. An empty ProjectID takes the document's; a
// different one is models.ErrNotFound. With a queue the job is enqueued and
// returned queued. Without one, or when enqueueing fails, the job runs
// inline and is returned in its terminal state.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*models.LabJob, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", models.ErrInvalidQuery)
	}

	query := c.withDefaults(req.Query)
	if err := c.retriever.Validate(query); err != nil {
		return nil, err
	}

	doc, err := c.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	projectID := strings.TrimSpace(req.ProjectID)
	switch {
	case projectID == "":
		projectID = doc.ProjectID
	case projectID != doc.ProjectID:
		return nil, fmt.Errorf("%w: document %s in project %s", models.ErrNotFound, doc.ID, projectID)
	}

	job := &models.LabJob{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		DocumentID: req.DocumentID,
		Query:      query,
		Direction:  strings.TrimSpace(req.Direction),
		State:      models.JobStateQueued,
		CreatedAt:  c.now(),
	}
	if err := c.createJob(ctx, job); err != nil {
		return nil, err
	}
	c.log.Info("lab job submitted", "job_id", job.ID, "project_id", job.ProjectID, "mode", job.Mode())

	if c.queue != nil {
		err := c.queue.Enqueue(ctx, job.ID)
		if err == nil {
			return job, nil
		}
		c.log.Warn("enqueue failed, running inline", "job_id", job.ID, "error", err)
	}

	detached := context.WithoutCancel(ctx)
	if err := c.Execute(ctx, job.ID); err != nil {
		c.abandon(detached, job.ID, err)
		return nil, err
	}
	return c.store.GetJob(detached, job.ID)
}

// createJob inserts job. When the project is held, stale jobs are failed
// and the insert is tried once more.
func (c *Coordinator) createJob(ctx context.Context, job *models.LabJob) error {
	err := c.store.CreateJob(ctx, job)
	if !errors.Is(err, models.ErrAlreadyRunning) {
		return err
	}
	n, sweepErr := c.RecoverStale(ctx, c.cfg.StaleAfter)
	if sweepErr != nil {
		c.log.Warn("stale sweep on submit failed", "project_id", job.ProjectID, "error", sweepErr)
		return err
	}
	if n == 0 {
		return err
	}
	return c.store.CreateJob(ctx, job)
}

// abandon fails a job whose inline run could not be driven to a terminal
// state, releasing its project.
func (c *Coordinator) abandon(ctx context.Context, jobID string, cause error) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if _, err := c.store.FailJob(ctx, jobID, models.UserMessage(cause), cause.Error(), c.now()); err != nil {
		c.log.Error("could not fail abandoned job", "job_id", jobID, "error", err)
	}
}

// Execute claims a queued job and runs it to a terminal state. Jobs that are
// already processing or terminal are left untouched. Pipeline failures are
// recorded on the job; only store errors are returned.
func (c *Coordinator) Execute(ctx context.Context, jobID string) error {
	claimed, err := c.store.ClaimJob(ctx, jobID, c.now())
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		job, err := c.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		c.log.Debug("job not claimable", "job_id", jobID, "state", job.State)
		return nil
	}

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	start := time.Now()
	lessons, runErr := c.run(ctx, job)

	// The outcome is written even when ctx was cancelled during the run.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if runErr == nil {
		ok, err := c.store.CompleteJob(pctx, jobID, lessons, c.now())
		switch {
		case err != nil:
			runErr = fmt.Errorf("persist lessons: %w", err)
		case !ok:
			c.log.Warn("job left processing before completion", "job_id", jobID)
			return nil
		default:
			c.metrics.RecordTiming(metrics.OpLabJob, time.Since(start))
			c.log.Info("job completed", "job_id", jobID, "lessons", len(lessons), "duration_ms", time.Since(start).Milliseconds())
			return nil
		}
	}

	c.metrics.RecordFailure(metrics.OpLabJob)
	if _, err := c.store.FailJob(pctx, jobID, models.UserMessage(runErr), runErr.Error(), c.now()); err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	c.log.Error("job failed", "job_id", jobID, "error", runErr)
	return nil
}

// Status returns the current state of a job.
func (c *Coordinator) Status(ctx context.Context, jobID string) (*models.LabJob, error) {
	return c.store.GetJob(ctx, jobID)
}

// RecoverStale fails jobs queued or processing for longer than olderThan and
// returns how many it failed.
func (c *Coordinator) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = DefaultStaleAfter
	}
	now := c.now()
	cutoff := now.Add(-olderThan)

	stale, err := c.store.ListStale(ctx, cutoff, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}

	recovered := 0
	for _, job := range stale {
		detail := fmt.Sprintf("no progress for %s while %s", olderThan, job.State)
		ok, err := c.store.FailJob(ctx, job.ID, staleMessage, detail, now)
		if err != nil {
			return recovered, fmt.Errorf("fail stale job %s: %w", job.ID, err)
		}
		if ok {
			recovered++
			c.log.Warn("stale job failed", "job_id", job.ID, "state", job.State)
		}
	}
	return recovered, nil
}

// run retrieves passages and generates lessons for a claimed job.
func (c *Coordinator) run(ctx context.Context, job *models.LabJob) (lessons []models.MicroLesson, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("job panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			lessons, err = nil, fmt.Errorf("internal panic: %v", r)
		}
	}()

	if job.Query == nil {
		return nil, fmt.Errorf("%w: job has no query", models.ErrInvalidQuery)
	}

	var ref *models.MicroLesson
	if q, ok := job.Query.(models.DirectedQuery); ok && q.RemixSourceID != "" {
		if ref, err = c.remixSource(ctx, job.ProjectID, q.RemixSourceID); err != nil {
			return nil, err
		}
	}

	passages, err := c.retriever.Retrieve(ctx, job.DocumentID, job.Query)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}

	req := llm.GenerationRequest{Direction: job.Direction}
	for _, p := range passages {
		req.Passages = append(req.Passages, p.Chunk.Text)
	}

	switch q := job.Query.(type) {
	case models.DirectedQuery:
		if req.Direction == "" {
			req.Direction = strings.TrimSpace(q.QueryText)
		}
		if ref != nil {
			req.ReferenceName = ref.Name
		}
	case models.EmotionRankedQuery:
		if req.Direction == "" {
			req.Direction = c.cfg.RandomPrompt
		}
		req.MaxLessons = maxRandomLessons
	}

	drafts, err := c.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no lessons returned", models.ErrGenerationFailed)
	}
	if req.MaxLessons > 0 && len(drafts) > req.MaxLessons {
		drafts = drafts[:req.MaxLessons]
	}

	last, err := c.store.MaxOrderIndex(ctx, job.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("read order index: %w", err)
	}

	now := c.now()
	lessons = make([]models.MicroLesson, 0, len(drafts))
	for i, d := range drafts {
		lessons = append(lessons, d.ToLesson(uuid.New().String(), job.ProjectID, job.ID, last+1+i, now))
	}
	return lessons, nil
}

// remixSource loads a lesson to remix. Lessons of other projects are
// reported as models.ErrNotFound.
func (c *Coordinator) remixSource(ctx context.Context, projectID, lessonID string) (*models.MicroLesson, error) {
	lesson, err := c.store.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load remix source: %w", err)
	}
	if lesson.ProjectID != projectID {
		return nil, fmt.Errorf("load remix source: %w: lesson %s in project %s", models.ErrNotFound, lessonID, projectID)
	}
	return lesson, nil
}

func (c *Coordinator) withDefaults(q models.RetrievalQuery) models.RetrievalQuery {
	switch v := q.(type) {
	case models.DirectedQuery:
		if v.TopK == 0 {
			v.TopK = c.cfg.DirectedTopK
		}
		return v.WithDefaults()
	case models.EmotionRankedQuery:
		return v.WithDefaultsFrom(c.cfg.SampleSize, c.cfg.RandomTopK)
	}
	return q
}
