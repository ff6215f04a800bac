package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/corvino/graphtalk/internal/client"
	"github.com/corvino/graphtalk/internal/protocol"
)

// prop is a shorthand for building a JSON Schema property.
func prop(typ, desc string) any {
	return map[string]any{
		"type":        typ,
		"description": desc,
	}
}

// tools holds the REST client and the defaults the tools fall back to.
type tools struct {
	client *client.Client
	cfg    Config
}

func newTools(c *client.Client, cfg Config) *tools {
	return &tools{client: c, cfg: cfg}
}

// registerTools adds all graphtalk tools to the MCP server.
func registerTools(srv *mcpserver.MCPServer, t *tools) {
	roomProp := prop("string", "Room key (graph id). Defaults to the configured room")

	srv.AddTool(mcplib.Tool{
		Name:        "send_message",
		Description: "Post a chat message to a graph's room. Set node_reference to point the message at a node of the graph.",
		InputSchema: mcplib.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"text":           prop("string", "The message text to send"),
				"node_reference": prop("string", "Optional: id of the graph node the message is about"),
				"room":           roomProp,
			},
			Required: []string{"text"},
		},
	}, t.sendMessage)

	srv.AddTool(mcplib.Tool{
		Name:        "get_history",
		Description: "Read a room's message history, oldest first.",
		InputSchema: mcplib.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"latest": prop("number", "Get the last N messages (default: 20). Ignored when offset is set"),
				"limit":  prop("number", "Page size when paging with offset"),
				"offset": prop("number", "Number of oldest messages to skip"),
				"room":   roomProp,
			},
		},
	}, t.getHistory)

	srv.AddTool(mcplib.Tool{
		Name:        "room_info",
		Description: "Show who is in a room and how many messages it holds.",
		InputSchema: mcplib.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"room": roomProp,
			},
		},
	}, t.roomInfo)

	srv.AddTool(mcplib.Tool{
		Name:        "list_rooms",
		Description: "List the rooms currently live on the server.",
		InputSchema: mcplib.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, t.listRooms)
}

func (t *tools) room(request mcplib.CallToolRequest) string {
	return request.GetString("room", t.cfg.Room)
}

func (t *tools) sendMessage(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return mcplib.NewToolResultError("text is required"), nil
	}
	room := t.room(request)
	if room == "" {
		return mcplib.NewToolResultError("room is required"), nil
	}

	req := protocol.SendRequest{
		Identity:    t.cfg.Identity,
		DisplayName: t.cfg.DisplayName,
		Content:     text,
	}
	if node := request.GetString("node_reference", ""); node != "" {
		req.NodeReference = &node
	}

	resp, err := t.client.Send(ctx, room, req)
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("failed to send: %v", err)), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("Message sent to %s (id %s)", room, resp.MessageID)), nil
}

func (t *tools) getHistory(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	room := t.room(request)
	if room == "" {
		return mcplib.NewToolResultError("room is required"), nil
	}

	var (
		messages []protocol.Message
		footer   string
	)
	if offset := request.GetInt("offset", -1); offset >= 0 {
		page, err := t.client.History(ctx, room, request.GetInt("limit", 0), offset)
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("failed to get history: %v", err)), nil
		}
		messages = page.Messages
		if page.HasMore {
			footer = fmt.Sprintf("(%d of %d shown; continue with offset %d)\n", len(page.Messages), page.Total, page.Offset+len(page.Messages))
		}
	} else {
		latest, err := t.client.Latest(ctx, room, request.GetInt("latest", 20))
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("failed to get history: %v", err)), nil
		}
		messages = latest
	}

	if len(messages) == 0 {
		return mcplib.NewToolResultText("No messages found."), nil
	}

	var sb strings.Builder
	for _, m := range messages {
		ts := m.Timestamp.Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(&sb, "[%s] %s", ts, m.Identity)
		if m.DisplayName != "" && m.DisplayName != m.Identity {
			fmt.Fprintf(&sb, " (%s)", m.DisplayName)
		}
		fmt.Fprintf(&sb, ": %s", m.Content)
		if m.NodeReference != nil {
			fmt.Fprintf(&sb, " [node %s]", *m.NodeReference)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(footer)

	return mcplib.NewToolResultText(sb.String()), nil
}

func (t *tools) roomInfo(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	room := t.room(request)
	if room == "" {
		return mcplib.NewToolResultError("room is required"), nil
	}

	info, err := t.client.Info(ctx, room)
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("failed to get room info: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Room %s: %d messages, %d online\n", info.RoomKey, info.TotalMessages, info.ActiveUserCount)
	for _, u := range info.ActiveUsers {
		fmt.Fprintf(&sb, "- %s (%s, joined %s)\n", u.Identity, u.DisplayName, u.JoinedAt.Local().Format("15:04:05"))
	}
	return mcplib.NewToolResultText(sb.String()), nil
}

func (t *tools) listRooms(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	list, err := t.client.Rooms(ctx)
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("failed to list rooms: %v", err)), nil
	}

	if len(list.Rooms) == 0 {
		return mcplib.NewToolResultText("No live rooms."), nil
	}

	var sb strings.Builder
	for _, r := range list.Rooms {
		fmt.Fprintf(&sb, "%s (%d sessions, %d messages)\n", r.RoomKey, r.Sessions, r.TotalMessages)
	}
	return mcplib.NewToolResultText(sb.String()), nil
}
