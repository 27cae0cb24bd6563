package db

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/litlab/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type documentRecord struct {
	ID         surrealmodels.RecordID `json:"id"`
	ProjectID  string                 `json:"project_id"`
	Title      string                 `json:"title"`
	ChunkCount int                    `json:"chunk_count"`
	Created    time.Time              `json:"created"`
}

func (r documentRecord) toModel() (models.Document, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{
		ID:         id,
		ProjectID:  r.ProjectID,
		Title:      r.Title,
		ChunkCount: r.ChunkCount,
		CreatedAt:  r.Created,
	}, nil
}

type chunkRecord struct {
	ID         surrealmodels.RecordID `json:"id"`
	DocumentID string                 `json:"document_id"`
	Position   int                    `json:"position"`
	Text       string                 `json:"text"`
	Embedding  []float32              `json:"embedding"`
	Created    time.Time              `json:"created"`
}

func (r chunkRecord) toModel() (models.Chunk, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.Chunk{}, err
	}
	return models.Chunk{
		ID:         id,
		DocumentID: r.DocumentID,
		Position:   r.Position,
		Text:       r.Text,
		Embedding:  r.Embedding,
		CreatedAt:  r.Created,
	}, nil
}

type jobRecord struct {
	ID          surrealmodels.RecordID `json:"id"`
	ProjectID   string                 `json:"project_id"`
	DocumentID  string                 `json:"document_id"`
	Mode        string                 `json:"mode"`
	Query       string                 `json:"query"`
	Direction   string                 `json:"direction"`
	State       string                 `json:"state"`
	LessonIDs   []string               `json:"lesson_ids"`
	Error       string                 `json:"error"`
	ErrorDetail string                 `json:"error_detail"`
	Attempts    int                    `json:"attempts"`
	Created     time.Time              `json:"created"`
	Started     *time.Time             `json:"started,omitempty"`
	Completed   *time.Time             `json:"completed,omitempty"`
}

func (r jobRecord) toModel() (*models.LabJob, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return nil, err
	}
	q, err := models.DecodeQuery([]byte(r.Query))
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	return &models.LabJob{
		ID:          id,
		ProjectID:   r.ProjectID,
		DocumentID:  r.DocumentID,
		Query:       q,
		Direction:   r.Direction,
		State:       models.JobState(r.State),
		LessonIDs:   r.LessonIDs,
		Error:       r.Error,
		ErrorDetail: r.ErrorDetail,
		Attempts:    r.Attempts,
		CreatedAt:   r.Created,
		StartedAt:   r.Started,
		CompletedAt: r.Completed,
	}, nil
}

type lessonRecord struct {
	ID          surrealmodels.RecordID `json:"id"`
	ProjectID   string                 `json:"project_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	OrderIndex  int                    `json:"order_index"`
	Slides      []models.Slide         `json:"slides"`
	SourceJob   string                 `json:"source_job"`
	Created     time.Time              `json:"created"`
}

func (r lessonRecord) toModel() (models.MicroLesson, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.MicroLesson{}, err
	}
	return models.MicroLesson{
		ID:          id,
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: r.Description,
		OrderIndex:  r.OrderIndex,
		Slides:      r.Slides,
		SourceJobID: r.SourceJob,
		CreatedAt:   r.Created,
	}, nil
}

// lessonContent is the INSERT payload for one lesson.
func lessonContent(l models.MicroLesson) map[string]any {
	slides := make([]map[string]any, len(l.Slides))
	for i, s := range l.Slides {
		slides[i] = map[string]any{"position": s.Position, "text": s.Text}
	}
	return map[string]any{
		"id":          l.ID,
		"project_id":  l.ProjectID,
		"name":        l.Name,
		"description": l.Description,
		"order_index": l.OrderIndex,
		"slides":      slides,
		"source_job":  l.SourceJobID,
	}
}

// rfc3339 formats t for a <datetime> cast inside SurrealQL.
func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
