package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvino/graphtalk/internal/mcp"
)

func newMCPServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "mcp-serve",
		Short:  "Start the MCP stdio server for agent integration",
		Long:   `Runs a Model Context Protocol (MCP) server over stdio. Agents connect to this as a subprocess to access room tools (send_message, get_history, room_info, list_rooms).`,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagServer == "" {
				return fmt.Errorf("server URL is required (use --server or .graphtalk config)")
			}
			if err := requireIdentity(); err != nil {
				return err
			}

			return mcp.Serve(cmd.Context(), mcp.Config{
				ServerURL:   flagServer,
				Room:        flagRoom,
				Identity:    flagIdentity,
				DisplayName: flagName,
			})
		},
	}

	return cmd
}
