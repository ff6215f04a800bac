package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/client"
	"github.com/corvino/graphtalk/internal/config"
	"github.com/corvino/graphtalk/internal/graphs"
	"github.com/corvino/graphtalk/internal/protocol"
	"github.com/corvino/graphtalk/internal/server"
	"github.com/corvino/graphtalk/internal/store"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	log := zap.NewNop()
	messages, err := store.OpenBadger(config.InMemoryPath, log)
	require.NoError(t, err)

	hub := server.NewHub(messages, config.DefaultRoom(), log)
	srv := httptest.NewServer(server.New(hub, graphs.AllowAll{}, log).Handler())
	t.Cleanup(func() {
		srv.Close()
		hub.CloseAll()
		messages.Close()
	})
	return srv.URL
}

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(ctx context.Context, stdin string, args ...string) (string, string, error) {
	cmd := newRootCmd()
	var out, errOut syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	out, _, err := execute(context.Background(), "", args...)
	require.NoError(t, err)
	return out
}

func TestSendAndHistory(t *testing.T) {
	req := require.New(t)
	url := newTestServer(t)

	_, stderr, err := execute(context.Background(), "", "send", "-s", url, "-r", "g1", "-i", "u1", "-n", "Alice", "--node", "n1", "hello", "graph")
	req.NoError(err)
	req.Contains(stderr, `to room "g1"`)

	_, _, err = execute(context.Background(), "piped body\n", "send", "-s", url, "-r", "g1", "-i", "u2")
	req.NoError(err)

	out := run(t, "history", "-s", url, "-r", "g1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	req.Len(lines, 2)
	req.Contains(lines[0], "Alice (u1): hello graph (node n1)")
	req.Contains(lines[1], "u2: piped body")

	out = run(t, "history", "-s", url, "-r", "g1", "--format", "json", "--limit", "1", "--offset", "1")
	var page protocol.HistoryResponse
	req.NoError(json.Unmarshal([]byte(out), &page))
	req.Equal(2, page.Total)
	req.Len(page.Messages, 1)
	req.Equal("piped body", page.Messages[0].Content)
	req.False(page.HasMore)

	out = run(t, "history", "-s", url, "-r", "g1", "--latest", "1")
	req.Contains(out, "piped body")
	req.NotContains(out, "hello graph")
}

func TestSendRequiresRoomAndIdentity(t *testing.T) {
	url := newTestServer(t)

	_, _, err := execute(context.Background(), "", "send", "-s", url, "-r", "", "-i", "u1", "x")
	require.ErrorContains(t, err, "room is required")

	_, _, err = execute(context.Background(), "", "send", "-s", url, "-r", "g1", "-i", "", "x")
	require.ErrorContains(t, err, "identity is required")

	_, _, err = execute(context.Background(), "   ", "send", "-s", url, "-r", "g1", "-i", "u1")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.Status)
}

func TestInfoRoomsStatus(t *testing.T) {
	req := require.New(t)
	url := newTestServer(t)
	run(t, "send", "-s", url, "-r", "g1", "-i", "u1", "hi")

	out := run(t, "info", "-s", url, "-r", "g1")
	req.Contains(out, "Room:      g1")
	req.Contains(out, "Messages:  1")
	req.Contains(out, "Online:    0")

	out = run(t, "rooms", "-s", url)
	req.Contains(out, "ROOM")
	req.Contains(out, "g1")

	out = run(t, "status", "-s", url)
	req.Contains(out, "Status:      ok")
	req.Contains(out, "Rooms:       1")
}

func TestRoomsEmpty(t *testing.T) {
	out := run(t, "rooms", "-s", newTestServer(t))
	require.Equal(t, "no active rooms\n", out)
}

func TestDigest(t *testing.T) {
	req := require.New(t)
	url := newTestServer(t)
	run(t, "send", "-s", url, "-r", "g1", "-i", "u1", "--node", "n9", "look")
	run(t, "send", "-s", url, "-r", "g1", "-i", "u2", "agreed")

	path := filepath.Join(t.TempDir(), "digest.md")
	run(t, "digest", "-s", url, "-r", "g1", "-o", path, "--all")
	run(t, "digest", "-s", url, "-r", "g1", "-o", path, "--latest", "1")

	data, err := os.ReadFile(path)
	req.NoError(err)
	content := string(data)
	req.Equal(2, strings.Count(content, "# Graph Chat Digest"))
	req.Contains(content, "**Messages**: 2")
	req.Contains(content, "**Messages**: 1")
	req.Contains(content, "- `n9` (1)")
}

func TestInspect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	messages, err := store.OpenBadger(dir, zap.NewNop())
	req.NoError(err)
	now := time.Now()
	_, err = messages.Open(ctx, "g1", now)
	req.NoError(err)
	req.NoError(messages.Put(ctx, protocol.Message{ID: "0000000001-a", RoomKey: "g1", Identity: "u1", Content: "stored", Timestamp: now, Seq: 1}))
	req.NoError(messages.Close())

	out := run(t, "inspect", "--db", dir, "-r", "g1")
	req.Contains(out, "0000000001-a")
	req.Contains(out, "stored")
	req.Contains(out, "1 messages")

	out = run(t, "inspect", "--db", dir, "-r", "g2")
	req.Contains(out, `room "g2" has no messages`)
}

func TestWatch(t *testing.T) {
	req := require.New(t)
	url := newTestServer(t)
	c := client.New(url)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := newRootCmd()
	var out syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch", "-s", url, "-r", "g1", "-i", "w1", "--no-color"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	req.Eventually(func() bool {
		info, err := c.Info(context.Background(), "g1")
		return err == nil && info.ActiveUserCount == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err := c.Send(context.Background(), "g1", protocol.SendRequest{Identity: "u1", Content: "live"})
	req.NoError(err)
	req.Eventually(func() bool { return strings.Contains(out.String(), "u1: live") }, 5*time.Second, 10*time.Millisecond)
	req.Contains(out.String(), "connected to g1, online: w1")

	cancel()
	req.NoError(<-done)
}

func TestFindSettingsWalksParents(t *testing.T) {
	req := require.New(t)
	root := t.TempDir()
	child := filepath.Join(root, "a", "b")
	req.NoError(os.MkdirAll(child, 0o755))
	req.NoError(os.WriteFile(filepath.Join(root, settingsFileName), []byte(`{"server":"http://chat:9000","room":"g7","identity":"u9"}`), 0o644))

	s := findSettings(child)
	req.NotNil(s)
	req.Equal("http://chat:9000", s.Server)
	req.Equal("g7", s.Room)
	req.Equal("u9", s.Identity)

	merged := Settings{Server: "http://localhost:8080", DisplayName: "Nine"}.merge(*s)
	req.Equal("http://chat:9000", merged.Server)
	req.Equal("Nine", merged.DisplayName)
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.Local)
	node := "n3"

	require.Equal(t, "[12:00:00] Bob (u2): hi (node n3)", formatEvent(protocol.Event{
		Type: protocol.TypeChatMessage, Identity: "u2", DisplayName: "Bob", Content: "hi", NodeRef: &node, Timestamp: ts,
	}, false))
	require.Equal(t, "[12:00:00] --- u2 left", formatEvent(protocol.Event{
		Type: protocol.TypeUserLeft, Identity: "u2", DisplayName: "u2", Timestamp: ts,
	}, false))
	require.Equal(t, "error: room is full", formatEvent(protocol.Event{Type: protocol.TypeError, Message: "room is full"}, false))
	require.Empty(t, formatEvent(protocol.Event{Type: protocol.TypePong}, false))
	require.Equal(t, identityColor("u1"), identityColor("u1"))
}
