// Package mcp exposes the compliance engine and the text evaluator as MCP
// tools over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/consentwatch/internal/pipeline"
)

// Server wraps the MCP SDK server around a Pipeline.
type Server struct {
	mcpServer *mcpsdk.Server
	pipeline  *pipeline.Pipeline
}

// New creates an MCP server with every consentwatch tool registered.
func New(p *pipeline.Pipeline, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{pipeline: p}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "consentwatch",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves on stdio. Blocks until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "consentwatch_evaluate_exchange",
		Description: "Evaluate one HTTP exchange against the privacy and terms-of-service rule sets. Returns a report per domain with violations, warnings and a risk level.",
	}, s.handleEvaluateExchange)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "consentwatch_evaluate_text",
		Description: "Score user-typed text for sensitive content (0-100). Requires a configured scorer API key.",
	}, s.handleEvaluateText)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "consentwatch_history",
		Description: "List the most recent reports stored for a domain (privacy or tos), oldest first.",
	}, s.handleHistory)
}
