// Package mcp exposes graphtalk rooms as Model Context Protocol tools.
package mcp

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/corvino/graphtalk/internal/client"
)

// Config holds the configuration for the MCP server.
type Config struct {
	ServerURL   string
	Room        string
	Identity    string
	DisplayName string
}

// NewServer builds the MCP server with every graphtalk tool registered.
func NewServer(cfg Config) *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"graphtalk",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)
	registerTools(srv, newTools(client.New(cfg.ServerURL), cfg))
	return srv
}

// Serve starts the MCP stdio server. It blocks until stdin is closed, ctx
// is done or a signal is received.
func Serve(ctx context.Context, cfg Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdioSrv := mcpserver.NewStdioServer(NewServer(cfg))
	return stdioSrv.Listen(ctx, os.Stdin, os.Stdout)
}
