package service

import (
	"context"
	"time"

	"github.com/raphaelgruber/litlab/internal/models"
)

// JobStore persists lab jobs. Implementations enforce at most one
// non-terminal job per project: CreateJob returns models.ErrAlreadyRunning
// while another job of the same project is queued or processing.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.LabJob) error
	GetJob(ctx context.Context, id string) (*models.LabJob, error)

	// ClaimJob moves a queued job to processing. It reports false when the
	// job was not queued.
	ClaimJob(ctx context.Context, id string, now time.Time) (bool, error)

	// CompleteJob stores lessons and marks a processing job succeeded in one
	// transaction. It reports false, storing nothing, when the job was not
	// processing.
	CompleteJob(ctx context.Context, id string, lessons []models.MicroLesson, now time.Time) (bool, error)

	// FailJob marks a non-terminal job failed. It reports false when the job
	// was already terminal.
	FailJob(ctx context.Context, id, message, detail string, now time.Time) (bool, error)

	// ListStale returns queued jobs created before queuedBefore and
	// processing jobs started before startedBefore.
	ListStale(ctx context.Context, queuedBefore, startedBefore time.Time) ([]models.LabJob, error)
}

// LessonStore reads persisted micro-lessons.
type LessonStore interface {
	GetLesson(ctx context.Context, id string) (*models.MicroLesson, error)
	ListLessons(ctx context.Context, projectID string) ([]models.MicroLesson, error)

	// MaxOrderIndex returns the highest order index of the project's
	// lessons, or -1 when it has none.
	MaxOrderIndex(ctx context.Context, projectID string) (int, error)
}

// DocumentStore persists ingested document headers.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, projectID string) ([]models.Document, error)
}

// Store is everything a storage backend provides.
type Store interface {
	JobStore
	LessonStore
	DocumentStore
	ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteChunks(ctx context.Context, documentID string) error
	Close() error
}
