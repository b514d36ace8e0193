package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/service"
)

// SubmitCheckInput defines the input schema for the submit_check tool.
type SubmitCheckInput struct {
	Path       string   `json:"path" jsonschema:"Path of the document to check (PDF, Markdown or plain text)"`
	Checklists []string `json:"checklists" jsonschema:"Checklist IDs from list_checklists, consolidated in the given order"`
}

// NewSubmitCheckHandler creates the submit_check tool handler.
func NewSubmitCheckHandler(deps *Dependencies) mcp.ToolHandlerFor[SubmitCheckInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SubmitCheckInput) (*mcp.CallToolResult, any, error) {
		path := strings.TrimSpace(input.Path)
		if path == "" {
			return ErrorResult("Document path is required", "Provide path to a PDF, Markdown or text file"), nil, nil
		}
		if len(input.Checklists) == 0 {
			return ErrorResult("At least one checklist is required", "Call list_checklists to see available IDs"), nil, nil
		}
		for _, id := range input.Checklists {
			if _, err := deps.Catalog.Get(id); err != nil {
				if errors.Is(err, parser.ErrChecklistNotFound) {
					return ErrorResult(fmt.Sprintf("Unknown checklist %q", id), "Call list_checklists to see available IDs"), nil, nil
				}
				return ErrorResult(fmt.Sprintf("Checklist %q is invalid", id), err.Error()), nil, nil
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return ErrorResult("Failed to read document", err.Error()), nil, nil
		}

		task, err := deps.Tasks.Submit(ctx, service.SubmitRequest{
			DocumentName: filepath.Base(path),
			Document:     data,
			ChecklistIDs: input.Checklists,
			Checklist:    deps.Catalog.Source(input.Checklists...),
		})
		if err != nil {
			deps.Logger.Warn("submit_check failed", "path", path, "error", err)
			return ErrorResult("Failed to start check", err.Error()), nil, nil
		}

		deps.Logger.Info("submit_check started", "task_id", task.ID, "document", task.DocumentName)
		return JSONResult(taskView(task, false)), nil, nil
	}
}

// GetTaskInput defines the input schema for the get_task tool.
type GetTaskInput struct {
	TaskID      string `json:"task_id" jsonschema:"Task ID returned by submit_check"`
	IncludeRows bool   `json:"include_rows,omitempty" jsonschema:"Include every verdict row (default: only the summary)"`
}

// NewGetTaskHandler creates the get_task tool handler. Finished tasks
// that have been pruned from memory are read from the results directory.
func NewGetTaskHandler(deps *Dependencies) mcp.ToolHandlerFor[GetTaskInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetTaskInput) (*mcp.CallToolResult, any, error) {
		if input.TaskID == "" {
			return ErrorResult("task_id is required", ""), nil, nil
		}
		task, err := deps.Tasks.Get(input.TaskID)
		if errors.Is(err, service.ErrTaskNotFound) && deps.Results != nil {
			task, err = deps.Results.Load(input.TaskID)
		}
		if err != nil {
			return taskErrorResult(input.TaskID, "load task", err), nil, nil
		}
		return JSONResult(taskView(task, input.IncludeRows)), nil, nil
	}
}

// CancelTaskInput defines the input schema for the cancel_task tool.
type CancelTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"Task ID to cancel"`
}

// NewCancelTaskHandler creates the cancel_task tool handler.
func NewCancelTaskHandler(deps *Dependencies) mcp.ToolHandlerFor[CancelTaskInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CancelTaskInput) (*mcp.CallToolResult, any, error) {
		if err := deps.Tasks.Cancel(input.TaskID); err != nil {
			return taskErrorResult(input.TaskID, "cancel task", err), nil, nil
		}
		return TextResult(fmt.Sprintf("Cancellation requested for task %s", input.TaskID)), nil, nil
	}
}

// TaskView is the tool-facing rendering of a task.
type TaskView struct {
	ID           string                 `json:"task_id"`
	Status       models.TaskStatus      `json:"status"`
	Phase        models.Phase           `json:"phase"`
	Progress     int                    `json:"progress"`
	Message      string                 `json:"message"`
	DocumentName string                 `json:"document_name"`
	ChecklistIDs []string               `json:"checklist_ids,omitempty"`
	Summary      models.RunSummary      `json:"summary"`
	Error        string                 `json:"error,omitempty"`
	Rows         []models.EvaluationRow `json:"rows,omitempty"`
}

func taskView(t models.Task, withRows bool) TaskView {
	v := TaskView{
		ID:           t.ID,
		Status:       t.Status,
		Phase:        t.Phase,
		Progress:     t.Progress,
		Message:      t.Message,
		DocumentName: t.DocumentName,
		ChecklistIDs: t.ChecklistIDs,
		Summary:      t.Summary,
		Error:        t.Error,
	}
	if withRows {
		v.Rows = t.Rows
	}
	return v
}
