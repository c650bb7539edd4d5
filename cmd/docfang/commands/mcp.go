package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/docfang/internal/mcp"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes docfang pipeline state as tools that AI agents can
discover and invoke:
  - docfang_status: last run and staleness of every pipeline stage
  - docfang_sessions: persisted audit/improve sessions and their progress
  - docfang_staleness: staleness and prerequisite check for one stage`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:    env.logger,
				Sessions:  env.sessions,
				Ledger:    env.ledger,
				Validator: env.validator,
			})

			return srv.Run(cmd.Context())
		},
	}
}
