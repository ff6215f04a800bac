package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corvino/graphtalk/internal/client"
	"github.com/corvino/graphtalk/internal/logger"
)

func newWatchCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a room for live messages via WebSocket",
		Long: `Joins the room as a live session and prints chat, presence and error
events. Dropped connections are retried with exponential backoff; each
reconnect joins as a new session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoom(); err != nil {
				return err
			}
			identity := flagIdentity
			if identity == "" {
				identity = "watcher"
			}

			log, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stream := client.NewStream(flagServer, flagRoom, identity, flagName, log)
			done := make(chan error, 1)
			go func() { done <- stream.Run(ctx) }()

			fmt.Fprintf(cmd.ErrOrStderr(), "watching room %q as %q\n", flagRoom, identity)
			return printEvents(ctx, cmd, stream, done, !noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output (useful for piping/logging)")

	return cmd
}

func printEvents(ctx context.Context, cmd *cobra.Command, stream *client.Stream, done <-chan error, colored bool) error {
	out := cmd.OutOrStdout()
	for {
		select {
		case ev := <-stream.Events():
			if line := formatEvent(ev, colored); line != "" {
				fmt.Fprintln(out, line)
			}
		case err := <-done:
			return err
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr(), "\ndisconnecting...")
			stream.Close()
			return <-done
		}
	}
}
