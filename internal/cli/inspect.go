package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/store"
)

func newInspectCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump a room's message log straight from a badger directory",
		Long: `Reads the message log from disk without a running server. The server
holds the badger lock, so stop it first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoom(); err != nil {
				return err
			}

			log := zap.NewNop()
			messages, err := store.OpenBadger(dbPath, log)
			if err != nil {
				return fmt.Errorf("open %s: %w", dbPath, err)
			}
			defer messages.Close()

			list, err := messages.List(cmd.Context(), flagRoom)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "room %q has no messages\n", flagRoom)
				return nil
			}

			table := newTable(out, "Seq", "ID", "Timestamp", "Identity", "Node", "Content")
			for _, m := range list {
				node := ""
				if m.NodeReference != nil {
					node = *m.NodeReference
				}
				table.Append([]string{
					strconv.FormatUint(m.Seq, 10),
					m.ID,
					m.Timestamp.Local().Format("2006-01-02 15:04:05"),
					m.Identity,
					node,
					m.Content,
				})
			}
			table.Render()
			fmt.Fprintf(out, "\n%d messages\n", len(list))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", envOrDefault("BADGER_PATH", "graphtalk-data"), "badger directory")

	return cmd
}
