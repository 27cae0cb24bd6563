package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Executor runs queued lab jobs.
type Executor interface {
	Execute(ctx context.Context, jobID string) error
	RecoverStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// WorkerConfig tunes the worker loop.
type WorkerConfig struct {
	PollTimeout   time.Duration // BRPOP timeout; bounds shutdown latency
	SweepInterval time.Duration
	StaleAfter    time.Duration
}

// Worker pops job ids and executes them one at a time.
type Worker struct {
	queue *Queue
	exec  Executor
	cfg   WorkerConfig
	log   *slog.Logger
}

// NewWorker creates a worker. Zero config values get defaults of 5s polls,
// a one minute sweep and a 15 minute stale threshold.
func NewWorker(q *Queue, exec Executor, cfg WorkerConfig, log *slog.Logger) *Worker {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{queue: q, exec: exec, cfg: cfg, log: log.With("component", "worker")}
}

// Run processes jobs until ctx is cancelled. Stale jobs are swept once at
// start and then every SweepInterval.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", "poll_timeout", w.cfg.PollTimeout, "sweep_interval", w.cfg.SweepInterval)
	w.sweep(ctx)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		default:
		}

		jobID, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("worker stopped")
				return nil
			}
			w.log.Warn("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if jobID == "" {
			continue
		}
		w.handle(ctx, jobID)
	}
}

// handle executes one job and never lets a panic escape the loop.
func (w *Worker) handle(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panicked", "job_id", jobID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	start := time.Now()
	if err := w.exec.Execute(ctx, jobID); err != nil {
		w.log.Error("job execution failed", "job_id", jobID, "error", err)
		return
	}
	w.log.Debug("job handled", "job_id", jobID, "duration_ms", time.Since(start).Milliseconds())
}

func (w *Worker) sweep(ctx context.Context) {
	n, err := w.exec.RecoverStale(ctx, w.cfg.StaleAfter)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.log.Warn("stale job sweep failed", "error", fmt.Errorf("recover stale: %w", err))
		}
		return
	}
	if n > 0 {
		w.log.Info("recovered stale jobs", "count", n)
	}
}
