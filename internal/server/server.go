// Package server provides the MCP server wrapper with lifecycle management.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/complycheck/internal/tools"
)

// Name is the MCP implementation name reported to clients.
const Name = "complycheck"

// Server wraps the MCP server with dependencies and lifecycle management.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates an MCP server with every compliance tool registered and
// request logging installed.
func New(version string, deps *tools.Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: "Check documents against fixed compliance checklists. " +
			"Call list_checklists, then submit_check with a document path, then poll get_task until the status is terminal.",
	})
	mcpServer.AddReceivingMiddleware(LoggingMiddleware(logger))
	tools.RegisterAll(mcpServer, deps)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// Run serves over stdio and blocks until disconnect or context
// cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs the server on an arbitrary transport.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
