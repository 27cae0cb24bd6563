package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raphaelgruber/litlab/internal/models"
)

type documentRow struct {
	ID         string `gorm:"primaryKey"`
	ProjectID  string `gorm:"index;not null"`
	Title      string
	ChunkCount int
	CreatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

type chunkRow struct {
	ID         string    `gorm:"primaryKey"`
	DocumentID string    `gorm:"index:idx_chunk_doc_pos,priority:1;not null"`
	Position   int       `gorm:"index:idx_chunk_doc_pos,priority:2"`
	Text       string    `gorm:"not null"`
	Embedding  []float32 `gorm:"serializer:json"`
	CreatedAt  time.Time
}

func (chunkRow) TableName() string { return "chunks" }

// jobRow carries ActiveProject only while the job is non-terminal. The
// unique index on it allows one active job per project; NULLs never collide.
type jobRow struct {
	ID            string  `gorm:"primaryKey"`
	ProjectID     string  `gorm:"index;not null"`
	ActiveProject *string `gorm:"uniqueIndex"`
	DocumentID    string  `gorm:"not null"`
	Mode          string
	Query         string
	Direction     string
	State         string   `gorm:"index;not null"`
	LessonIDs     []string `gorm:"serializer:json"`
	Error         string
	ErrorDetail   string
	Attempts      int
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

func (jobRow) TableName() string { return "lab_jobs" }

type lessonRow struct {
	ID          string         `gorm:"primaryKey"`
	ProjectID   string         `gorm:"index:idx_lesson_project_order,priority:1;not null"`
	OrderIndex  int            `gorm:"index:idx_lesson_project_order,priority:2"`
	Name        string         `gorm:"not null"`
	Description string
	Slides      []models.Slide `gorm:"serializer:json"`
	SourceJobID string         `gorm:"index"`
	CreatedAt   time.Time
}

func (lessonRow) TableName() string { return "micro_lessons" }

func fromDocument(d *models.Document) documentRow {
	return documentRow{
		ID:         d.ID,
		ProjectID:  d.ProjectID,
		Title:      d.Title,
		ChunkCount: d.ChunkCount,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

func (r documentRow) toModel() models.Document {
	return models.Document{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Title:      r.Title,
		ChunkCount: r.ChunkCount,
		CreatedAt:  r.CreatedAt,
	}
}

func fromChunk(c models.Chunk) chunkRow {
	return chunkRow{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Position:   c.Position,
		Text:       c.Text,
		Embedding:  c.Embedding,
		CreatedAt:  c.CreatedAt.UTC(),
	}
}

func (r chunkRow) toModel() models.Chunk {
	return models.Chunk{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Position:   r.Position,
		Text:       r.Text,
		Embedding:  r.Embedding,
		CreatedAt:  r.CreatedAt,
	}
}

func fromJob(j *models.LabJob) (jobRow, error) {
	query, err := models.EncodeQuery(j.Query)
	if err != nil {
		return jobRow{}, err
	}
	row := jobRow{
		ID:          j.ID,
		ProjectID:   j.ProjectID,
		DocumentID:  j.DocumentID,
		Mode:        j.Mode(),
		Query:       string(query),
		Direction:   j.Direction,
		State:       string(j.State),
		LessonIDs:   j.LessonIDs,
		Error:       j.Error,
		ErrorDetail: j.ErrorDetail,
		Attempts:    j.Attempts,
		CreatedAt:   j.CreatedAt.UTC(),
		StartedAt:   utcPtr(j.StartedAt),
		CompletedAt: utcPtr(j.CompletedAt),
	}
	if !j.State.IsTerminal() {
		project := j.ProjectID
		row.ActiveProject = &project
	}
	return row, nil
}

func (r jobRow) toModel() (*models.LabJob, error) {
	q, err := models.DecodeQuery([]byte(r.Query))
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", r.ID, err)
	}
	return &models.LabJob{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		DocumentID:  r.DocumentID,
		Query:       q,
		Direction:   r.Direction,
		State:       models.JobState(r.State),
		LessonIDs:   r.LessonIDs,
		Error:       r.Error,
		ErrorDetail: r.ErrorDetail,
		Attempts:    r.Attempts,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

func fromLesson(l models.MicroLesson) lessonRow {
	return lessonRow{
		ID:          l.ID,
		ProjectID:   l.ProjectID,
		OrderIndex:  l.OrderIndex,
		Name:        l.Name,
		Description: l.Description,
		Slides:      l.Slides,
		SourceJobID: l.SourceJobID,
		CreatedAt:   l.CreatedAt.UTC(),
	}
}

func (r lessonRow) toModel() models.MicroLesson {
	return models.MicroLesson{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: r.Description,
		OrderIndex:  r.OrderIndex,
		Slides:      r.Slides,
		SourceJobID: r.SourceJobID,
		CreatedAt:   r.CreatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// jsonStrings encodes ids the way the json serializer stores them, for use
// in map-based updates that bypass serializers.
func jsonStrings(ids []string) string {
	b, _ := json.Marshal(ids)
	return string(b)
}
