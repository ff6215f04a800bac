// Package client talks to a graphtalk server over REST and WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corvino/graphtalk/internal/protocol"
)

// pageSize is the page size used when reading a whole room.
const pageSize = 100

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is a REST client for one server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the server URL the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

func roomPath(room, suffix string) string {
	return "/api/chat/" + url.PathEscape(room) + suffix
}

// Send posts a message to room.
func (c *Client) Send(ctx context.Context, room string, req protocol.SendRequest) (protocol.SendResponse, error) {
	var out protocol.SendResponse
	err := c.do(ctx, http.MethodPost, roomPath(room, "/send"), req, &out)
	return out, err
}

// History reads one page of room history. Zero limit uses the server default.
func (c *Client) History(ctx context.Context, room string, limit, offset int) (protocol.HistoryResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	path := roomPath(room, "/history")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out protocol.HistoryResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// AllHistory pages through the whole room, oldest first.
func (c *Client) AllHistory(ctx context.Context, room string) ([]protocol.Message, error) {
	var all []protocol.Message
	for offset := 0; ; {
		page, err := c.History(ctx, room, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Messages...)
		offset += len(page.Messages)
		if !page.HasMore || len(page.Messages) == 0 {
			return all, nil
		}
	}
}

// Latest returns the last n messages of room, oldest first.
func (c *Client) Latest(ctx context.Context, room string, n int) ([]protocol.Message, error) {
	head, err := c.History(ctx, room, 1, 0)
	if err != nil {
		return nil, err
	}
	offset := head.Total - n
	if offset < 0 {
		offset = 0
	}
	var out []protocol.Message
	for len(out) < n {
		page, err := c.History(ctx, room, n-len(out), offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Messages...)
		offset += len(page.Messages)
		if !page.HasMore || len(page.Messages) == 0 {
			break
		}
	}
	return out, nil
}

// Info describes room.
func (c *Client) Info(ctx context.Context, room string) (protocol.InfoResponse, error) {
	var out protocol.InfoResponse
	err := c.do(ctx, http.MethodGet, roomPath(room, "/info"), nil, &out)
	return out, err
}

// Rooms lists the live rooms.
func (c *Client) Rooms(ctx context.Context) (protocol.RoomList, error) {
	var out protocol.RoomList
	err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &out)
	return out, err
}

// Health reports server status.
func (c *Client) Health(ctx context.Context) (protocol.HealthResponse, error) {
	var out protocol.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e protocol.ErrorResponse
		raw, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
			if e.Message != "" {
				msg += ": " + e.Message
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
