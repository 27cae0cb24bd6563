package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/litlab/internal/models"
)

// ListLessonsInput defines the input schema for the list_lessons tool.
type ListLessonsInput struct {
	Project string `json:"project,omitempty" jsonschema:"Project to list; defaults to the configured project"`
}

// ListLessonsResult is the list_lessons output.
type ListLessonsResult struct {
	Project string               `json:"project"`
	Lessons []models.MicroLesson `json:"lessons"`
	Count   int                  `json:"count"`
}

// NewListLessonsHandler creates the list_lessons tool handler.
func NewListLessonsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListLessonsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListLessonsInput) (*mcp.CallToolResult, any, error) {
		project := DetectProject(deps.Config, input.Project)
		if project == "" {
			return ErrorResult("project is required", "Pass project or set LITLAB_PROJECT"), nil, nil
		}
		lessons, err := deps.Search.ListLessons(ctx, project)
		if err != nil {
			deps.Logger.Error("list_lessons failed", "project", project, "error", err)
			return ErrorResult("Failed to list lessons", "Database may be unavailable"), nil, nil
		}
		if lessons == nil {
			lessons = []models.MicroLesson{}
		}
		return JSONResult(ListLessonsResult{Project: project, Lessons: lessons, Count: len(lessons)}), nil, nil
	}
}
