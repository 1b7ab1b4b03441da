package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"symposium/internal/logging"
	"symposium/internal/mcpserver"
	"symposium/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing run inspection tools
(list_runs, get_run_status, get_review_sheet) for editor agents.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	catalog, err := store.Open(catalogPath(cfg))
	if err != nil {
		return fmt.Errorf("open run catalog: %w", err)
	}
	defer catalog.Close()

	srv := mcpserver.NewServer(catalog, cfg.DataDir)
	logging.New("mcp").Info("starting symposium MCP server over stdio")
	return srv.Run(cmd.Context(), &sdkmcp.StdioTransport{})
}
