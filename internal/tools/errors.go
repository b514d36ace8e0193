package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/complycheck/internal/service"
)

// ErrorResult creates a tool error result. A non-empty hint is appended
// as a second sentence telling the caller how to recover.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// JSONResult renders v as indented JSON text.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("Failed to encode result", err.Error())
	}
	return TextResult(string(data))
}

// taskErrorResult maps task manager errors to tool errors. action names
// the failed operation for unexpected errors.
func taskErrorResult(id, action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return ErrorResult(fmt.Sprintf("Task %q not found", id), "Check the ID returned by submit_check")
	case errors.Is(err, service.ErrAlreadyFinished):
		return ErrorResult(fmt.Sprintf("Task %q already finished", id), "Use get_task to read its results")
	default:
		return ErrorResult("Failed to "+action, err.Error())
	}
}
