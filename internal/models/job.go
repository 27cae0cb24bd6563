// Package models defines data structures shared across the lab pipeline.
package models

import "time"

// JobState is the lifecycle state of a lab job.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// LabJob is one asynchronous retrieval plus generation unit of work.
type LabJob struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	DocumentID string         `json:"document_id"`
	Query      RetrievalQuery `json:"-"`
	Direction  string         `json:"direction,omitempty"` // extra user guidance passed to generation
	State      JobState       `json:"state"`
	LessonIDs  []string       `json:"lesson_ids,omitempty"`

	// Error is safe to show to end users. ErrorDetail keeps the full chain.
	Error       string `json:"error,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`

	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Mode returns the query mode, or "" when no query is attached.
func (j *LabJob) Mode() string {
	if j.Query == nil {
		return ""
	}
	return j.Query.Mode()
}
