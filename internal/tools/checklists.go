package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/complycheck/internal/models"
)

// ListChecklistsInput takes no arguments.
type ListChecklistsInput struct{}

// ListChecklistsResult is the response from the list_checklists tool.
type ListChecklistsResult struct {
	Checklists []models.ChecklistInfo `json:"checklists"`
}

// NewListChecklistsHandler creates the list_checklists tool handler.
func NewListChecklistsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListChecklistsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListChecklistsInput) (*mcp.CallToolResult, any, error) {
		infos, err := deps.Catalog.List()
		if err != nil {
			deps.Logger.Error("list checklists failed", "error", err)
			return ErrorResult("Failed to list checklists", "Check that the checklist directory exists"), nil, nil
		}
		if len(infos) == 0 {
			return TextResult("No checklists available"), nil, nil
		}
		return JSONResult(ListChecklistsResult{Checklists: infos}), nil, nil
	}
}
