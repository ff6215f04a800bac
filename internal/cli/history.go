package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/corvino/graphtalk/internal/protocol"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		offset int
		latest int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a page of a room's message history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoom(); err != nil {
				return err
			}

			c := newClient()
			if latest > 0 {
				messages, err := c.Latest(cmd.Context(), flagRoom, latest)
				if err != nil {
					return err
				}
				return printMessages(cmd.OutOrStdout(), messages, format)
			}

			page, err := c.History(cmd.Context(), flagRoom, limit, offset)
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(cmd.OutOrStdout(), page)
			}
			if err := printMessages(cmd.OutOrStdout(), page.Messages, format); err != nil {
				return err
			}
			if page.HasMore {
				fmt.Fprintf(cmd.ErrOrStderr(), "showing %d-%d of %d (use --offset %d for more)\n",
					page.Offset+1, page.Offset+len(page.Messages), page.Total, page.Offset+len(page.Messages))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default if zero)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of oldest messages to skip")
	cmd.Flags().IntVar(&latest, "latest", 0, "show the N most recent messages")
	cmd.Flags().StringVar(&format, "format", "plain", "output format: plain, json")

	return cmd
}

func printMessages(w io.Writer, messages []protocol.Message, format string) error {
	if format == "json" {
		return printJSON(w, messages)
	}

	if len(messages) == 0 {
		fmt.Fprintln(w, "no messages")
		return nil
	}
	for _, m := range messages {
		fmt.Fprintln(w, formatMessage(m))
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
