package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := newClient().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:      %s\n", health.Status)
			fmt.Fprintf(out, "Uptime:      %s\n", health.Uptime)
			fmt.Fprintf(out, "Rooms:       %d\n", health.Rooms)
			fmt.Fprintf(out, "Goroutines:  %d\n", health.Goroutines)
			if health.RSSBytes > 0 {
				fmt.Fprintf(out, "Memory:      %.1f MiB\n", float64(health.RSSBytes)/(1<<20))
			}
			return nil
		},
	}
}
