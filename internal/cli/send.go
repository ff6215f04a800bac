package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corvino/graphtalk/internal/protocol"
)

func newSendCmd() *cobra.Command {
	var (
		body string
		node string
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to a room",
		Long: `Send a message to a room. Message content can come from:
  - Positional arguments (joined with spaces)
  - The --body flag
  - Stdin (if no args and no --body)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoom(); err != nil {
				return err
			}
			if err := requireIdentity(); err != nil {
				return err
			}

			var content string
			switch {
			case body != "":
				content = body
			case len(args) > 0:
				content = strings.Join(args, " ")
			default:
				in := cmd.InOrStdin()
				if f, ok := in.(*os.File); ok {
					if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
						return fmt.Errorf("no message provided (use args, --body, or pipe to stdin)")
					}
				}
				b, err := io.ReadAll(in)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = string(b)
			}
			content = strings.TrimRight(content, "\n")

			req := protocol.SendRequest{
				Identity:    flagIdentity,
				DisplayName: flagName,
				Content:     content,
			}
			if node != "" {
				req.NodeReference = &node
			}

			resp, err := newClient().Send(cmd.Context(), flagRoom, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "sent message %s to room %q\n", resp.MessageID, flagRoom)
			return nil
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "message body (alternative to args/stdin)")
	cmd.Flags().StringVar(&node, "node", "", "id of the graph node the message refers to")

	return cmd
}
