package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvino/graphtalk/internal/protocol"
	"github.com/corvino/graphtalk/internal/synopsis"
)

func newDigestCmd() *cobra.Command {
	var (
		outputFile string
		latest     int
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Save a room transcript to a markdown file",
		Long: `Fetches messages from the room and writes them as a formatted markdown
transcript, including the graph nodes the conversation referenced.

Examples:
  graphtalk digest                         # Save latest 50 messages to graphtalk-digest.md
  graphtalk digest -o review-notes.md      # Custom output file
  graphtalk digest --latest 200            # Save latest 200 messages
  graphtalk digest --all                   # Save the whole room`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoom(); err != nil {
				return err
			}

			c := newClient()
			var (
				messages []protocol.Message
				err      error
			)
			if all {
				messages, err = c.AllHistory(cmd.Context(), flagRoom)
			} else {
				messages, err = c.Latest(cmd.Context(), flagRoom, latest)
			}
			if err != nil {
				return err
			}

			if len(messages) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no messages to digest")
				return nil
			}

			content := synopsis.Build(flagRoom, messages, time.Now(), time.Local)
			if err := writeDigestFile(outputFile, content); err != nil {
				return fmt.Errorf("write %s: %w", outputFile, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d messages to %s\n", len(messages), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "graphtalk-digest.md", "output file path")
	cmd.Flags().IntVar(&latest, "latest", 50, "number of latest messages to include")
	cmd.Flags().BoolVar(&all, "all", false, "include the whole history (overrides --latest)")

	return cmd
}

func writeDigestFile(path, content string) error {
	// An existing file gets the new digest appended after a separator.
	if existing, err := os.ReadFile(path); err == nil {
		content = string(existing) + "\n\n---\n\n" + content
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
