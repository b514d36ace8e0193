package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_checklists",
		Description: "List the compliance checklists available for checking documents",
	}, NewListChecklistsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_check",
		Description: "Start a compliance check of a document on disk against one or more checklists. Returns a task ID to poll with get_task",
	}, NewSubmitCheckHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_task",
		Description: "Get the status, progress and verdicts of a compliance check task",
	}, NewGetTaskHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_task",
		Description: "Cancel a running compliance check. Verdicts produced so far are kept",
	}, NewCancelTaskHandler(deps))
}
