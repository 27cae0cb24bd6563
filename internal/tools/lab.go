package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/raphaelgruber/litlab/internal/service"
)

// SubmitLabInput defines the input schema for the submit_lab tool.
type SubmitLabInput struct {
	Project       string `json:"project,omitempty" jsonschema:"Project the lessons belong to; defaults to the configured project"`
	DocumentID    string `json:"document_id" jsonschema:"required,Document to draw passages from"`
	Mode          string `json:"mode,omitempty" jsonschema:"directed (default) or random"`
	Context       string `json:"context,omitempty" jsonschema:"Directed mode: what the lessons should be about"`
	RemixSourceID string `json:"remix_source_id,omitempty" jsonschema:"Directed mode: lesson id whose text guides retrieval"`
	SampleSize    int    `json:"sample_size,omitempty" jsonschema:"Random mode: passages to sample, default 30"`
	TopK          int    `json:"top_k,omitempty" jsonschema:"Passages handed to generation"`
	Direction     string `json:"direction,omitempty" jsonschema:"Extra guidance for lesson generation"`
}

// LabStatusInput defines the input schema for the lab_status tool.
type LabStatusInput struct {
	JobID string `json:"job_id" jsonschema:"required,Job id returned by submit_lab"`
}

// JobView is the tool representation of a lab job.
type JobView struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	DocumentID  string     `json:"document_id"`
	Mode        string     `json:"mode"`
	State       string     `json:"state"`
	LessonIDs   []string   `json:"lesson_ids,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newJobView(j *models.LabJob) JobView {
	return JobView{
		ID:          j.ID,
		ProjectID:   j.ProjectID,
		DocumentID:  j.DocumentID,
		Mode:        j.Mode(),
		State:       string(j.State),
		LessonIDs:   j.LessonIDs,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

var errUnknownMode = errors.New("unknown mode")

// labQuery turns tool input into a retrieval query.
func labQuery(input SubmitLabInput) (models.RetrievalQuery, error) {
	switch strings.ToLower(strings.TrimSpace(input.Mode)) {
	case "", models.QueryModeDirected:
		return models.DirectedQuery{
			QueryText:     strings.TrimSpace(input.Context),
			RemixSourceID: strings.TrimSpace(input.RemixSourceID),
			TopK:          input.TopK,
		}, nil
	case "random", models.QueryModeEmotionRanked:
		return models.EmotionRankedQuery{SampleSize: input.SampleSize, TopK: input.TopK}, nil
	default:
		return nil, errUnknownMode
	}
}

// NewSubmitLabHandler creates the submit_lab tool handler.
func NewSubmitLabHandler(deps *Dependencies) mcp.ToolHandlerFor[SubmitLabInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SubmitLabInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.DocumentID) == "" {
			return ErrorResult("document_id is required", "Ingest a document first and pass its id"), nil, nil
		}
		project := DetectProject(deps.Config, input.Project)
		if project == "" {
			return ErrorResult("project is required", "Pass project or set LITLAB_PROJECT"), nil, nil
		}
		query, err := labQuery(input)
		if err != nil {
			return ErrorResult("Unknown mode "+input.Mode, "Use directed or random"), nil, nil
		}

		job, err := deps.Lab.Submit(ctx, service.SubmitRequest{
			ProjectID:  project,
			DocumentID: input.DocumentID,
			Query:      query,
			Direction:  input.Direction,
		})
		if err != nil {
			deps.Logger.Warn("submit_lab failed", "project", project, "error", err)
			return ErrorFor(err), nil, nil
		}

		deps.Logger.Info("submit_lab", "job_id", job.ID, "project", project, "mode", job.Mode(), "state", job.State)
		return JSONResult(newJobView(job)), nil, nil
	}
}

// NewLabStatusHandler creates the lab_status tool handler.
func NewLabStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[LabStatusInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input LabStatusInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.JobID) == "" {
			return ErrorResult("job_id is required", "Use the id returned by submit_lab"), nil, nil
		}
		job, err := deps.Lab.Status(ctx, input.JobID)
		if err != nil {
			return ErrorFor(err), nil, nil
		}
		return JSONResult(newJobView(job)), nil, nil
	}
}
