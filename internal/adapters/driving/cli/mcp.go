package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pulse/internal/adapters/driving/mcp"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can query the
activity feed and the identity registry.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default)
  pulse mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  pulse mcp serve --port 8081

Client configuration:
  {
    "mcpServers": {
      "pulse": {
        "command": "/path/to/pulse",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if activityService == nil {
		return errors.New("activity service not configured")
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Activities: activityService,
		Summaries:  summaryService,
		Registry:   identityService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		timeout := domain.DefaultAppSettings().Server.ShutdownTimeout
		if settingsService != nil {
			if s, err := settingsService.Get(); err == nil {
				timeout = s.Server.ShutdownTimeout
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr, timeout)
	}

	return server.Run(cmd.Context())
}
