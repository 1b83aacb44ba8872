package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/consentwatch/internal/config"
	cwmcp "github.com/ppiankov/consentwatch/internal/mcp"
	"github.com/ppiankov/consentwatch/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs consentwatch as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: consentwatch_evaluate_exchange, consentwatch_evaluate_text,\n" +
		"consentwatch_history.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := cmd.ErrOrStderr()
	p, err := pipeline.Build(ctx, config.Get(), log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer p.Close()

	fmt.Fprintln(log, "consentwatch MCP server running on stdio")
	return cwmcp.New(p, version).Run(ctx)
}
