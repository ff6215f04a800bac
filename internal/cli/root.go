// Package cli implements the graphtalk command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/client"
	"github.com/corvino/graphtalk/internal/logger"
)

var (
	flagServer   string
	flagRoom     string
	flagIdentity string
	flagName     string
	flagLogLevel string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graphtalk",
		Short:         "CLI for graphtalk - chat rooms attached to knowledge graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Resolve defaults: flags > env vars > .graphtalk config > hardcoded defaults.
	defaults := Settings{Server: "http://localhost:8080"}
	if s := loadSettings(); s != nil {
		defaults = defaults.merge(*s)
	}

	root.PersistentFlags().StringVarP(&flagServer, "server", "s", envOrDefault("GRAPHTALK_SERVER", defaults.Server), "server URL")
	root.PersistentFlags().StringVarP(&flagRoom, "room", "r", envOrDefault("GRAPHTALK_ROOM", defaults.Room), "room key (graph id)")
	root.PersistentFlags().StringVarP(&flagIdentity, "identity", "i", envOrDefault("GRAPHTALK_IDENTITY", defaults.Identity), "your identity")
	root.PersistentFlags().StringVarP(&flagName, "name", "n", envOrDefault("GRAPHTALK_NAME", defaults.DisplayName), "display name (defaults to identity)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level for connection diagnostics")

	root.AddCommand(
		newSendCmd(),
		newHistoryCmd(),
		newInfoCmd(),
		newRoomsCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newDigestCmd(),
		newInspectCmd(),
		newMCPServeCmd(),
	)

	return root
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(flagServer)
}

func newLogger() (*zap.Logger, error) {
	return logger.New("development", flagLogLevel)
}

func requireRoom() error {
	if flagRoom == "" {
		return fmt.Errorf("room is required (use -r or GRAPHTALK_ROOM)")
	}
	return nil
}

func requireIdentity() error {
	if flagIdentity == "" {
		return fmt.Errorf("identity is required (use -i or GRAPHTALK_IDENTITY)")
	}
	return nil
}
