package models

import (
	"strings"
	"time"
)

// Slide is one ordered text unit of a micro-lesson.
type Slide struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// MicroLesson is a short narrative derived from source passages.
type MicroLesson struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OrderIndex  int       `json:"order_index"`
	Slides      []Slide   `json:"slides"`
	SourceJobID string    `json:"source_job_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConsolidatedText joins the non-empty slide texts in slide order.
func (l *MicroLesson) ConsolidatedText() string {
	parts := make([]string, 0, len(l.Slides))
	for _, s := range l.Slides {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// LessonDraft is the generator's output before it is persisted.
type LessonDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Slides      []string `json:"slides"`
}

// ToLesson materializes a draft for the given project.
func (d LessonDraft) ToLesson(id, projectID, jobID string, orderIndex int, now time.Time) MicroLesson {
	slides := make([]Slide, 0, len(d.Slides))
	for _, text := range d.Slides {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		slides = append(slides, Slide{Position: len(slides), Text: text})
	}
	return MicroLesson{
		ID:          id,
		ProjectID:   projectID,
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		OrderIndex:  orderIndex,
		Slides:      slides,
		SourceJobID: jobID,
		CreatedAt:   now,
	}
}
