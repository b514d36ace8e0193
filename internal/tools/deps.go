// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/service"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Tasks   *service.TaskManager
	Catalog *parser.Catalog
	// Results serves finished tasks no longer held in memory. Optional.
	Results *service.FileSink
	Logger  *slog.Logger
}
