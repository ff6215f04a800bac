package mcp

import (
	"context"
	"net/http/httptest"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/client"
	"github.com/corvino/graphtalk/internal/config"
	"github.com/corvino/graphtalk/internal/graphs"
	"github.com/corvino/graphtalk/internal/server"
	"github.com/corvino/graphtalk/internal/store"
)

func newTestTools(t *testing.T, room string) *tools {
	t.Helper()
	log := zap.NewNop()
	messages, err := store.OpenBadger(config.InMemoryPath, log)
	require.NoError(t, err)

	cfg := config.DefaultRoom()
	cfg.DefaultPageSize = 2
	hub := server.NewHub(messages, cfg, log)
	srv := httptest.NewServer(server.New(hub, graphs.AllowAll{}, log).Handler())
	t.Cleanup(func() {
		srv.Close()
		hub.CloseAll()
		messages.Close()
	})

	return newTools(client.New(srv.URL), Config{ServerURL: srv.URL, Room: room, Identity: "agent", DisplayName: "Agent"})
}

func call(args map[string]any) mcplib.CallToolRequest {
	var req mcplib.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools_SendAndHistory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tl := newTestTools(t, "g1")

	res, err := tl.sendMessage(ctx, call(map[string]any{"text": "first"}))
	req.NoError(err)
	req.False(res.IsError)
	req.Contains(text(t, res), "Message sent to g1")

	res, err = tl.sendMessage(ctx, call(map[string]any{"text": "see node", "node_reference": "n7"}))
	req.NoError(err)
	req.False(res.IsError)

	res, err = tl.sendMessage(ctx, call(map[string]any{"text": "third"}))
	req.NoError(err)
	req.False(res.IsError)

	res, err = tl.getHistory(ctx, call(nil))
	req.NoError(err)
	out := text(t, res)
	req.Contains(out, "agent (Agent): first")
	req.Contains(out, "see node [node n7]")
	req.Contains(out, "third")

	res, err = tl.getHistory(ctx, call(map[string]any{"offset": 0}))
	req.NoError(err)
	out = text(t, res)
	req.Contains(out, "first")
	req.NotContains(out, "third")
	req.Contains(out, "continue with offset 2")
}

func TestTools_RoomOverride(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tl := newTestTools(t, "g1")

	res, err := tl.sendMessage(ctx, call(map[string]any{"text": "elsewhere", "room": "g2"}))
	req.NoError(err)
	req.False(res.IsError)

	res, err = tl.roomInfo(ctx, call(map[string]any{"room": "g2"}))
	req.NoError(err)
	req.Contains(text(t, res), "Room g2: 1 messages, 0 online")

	res, err = tl.getHistory(ctx, call(nil))
	req.NoError(err)
	req.Equal("No messages found.", text(t, res))

	res, err = tl.listRooms(ctx, call(nil))
	req.NoError(err)
	req.Contains(text(t, res), "g2 (0 sessions, 1 messages)")
}

func TestTools_Errors(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tl := newTestTools(t, "")

	res, err := tl.sendMessage(ctx, call(map[string]any{"text": "hi"}))
	req.NoError(err)
	req.True(res.IsError)
	req.Equal("room is required", text(t, res))

	res, err = tl.sendMessage(ctx, call(map[string]any{"room": "g1"}))
	req.NoError(err)
	req.True(res.IsError)
	req.Equal("text is required", text(t, res))

	res, err = tl.roomInfo(ctx, call(map[string]any{"room": " "}))
	req.NoError(err)
	req.True(res.IsError)
	req.Contains(text(t, res), "400")
}

func TestNewServer(t *testing.T) {
	require.NotNil(t, NewServer(Config{ServerURL: "http://localhost:1", Room: "g1", Identity: "agent"}))
}
