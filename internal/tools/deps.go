// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/litlab/internal/config"
	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/raphaelgruber/litlab/internal/service"
)

// LabRunner submits and polls lab jobs.
type LabRunner interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*models.LabJob, error)
	Status(ctx context.Context, jobID string) (*models.LabJob, error)
}

// Searcher answers read-only passage and lesson queries.
type Searcher interface {
	RetrieveChunks(ctx context.Context, opts service.SearchOptions) ([]models.ScoredChunk, error)
	ListLessons(ctx context.Context, projectID string) ([]models.MicroLesson, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Lab     LabRunner
	Search  Searcher
	Metrics *metrics.Collector
	Config  *config.Config
	Logger  *slog.Logger
}
