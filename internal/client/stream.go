package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/protocol"
)

// Stream is a room WebSocket that reconnects with exponential backoff.
// Every reconnect joins the room as a new session.
type Stream struct {
	serverURL   string
	room        string
	identity    string
	displayName string
	log         *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	events chan protocol.Event
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(min, max time.Duration) StreamOption {
	return func(s *Stream) {
		s.minBackoff, s.maxBackoff = min, max
	}
}

// NewStream creates a stream for room. Call Run to connect.
func NewStream(serverURL, room, identity, displayName string, log *zap.Logger, opts ...StreamOption) *Stream {
	s := &Stream{
		serverURL:   serverURL,
		room:        room,
		identity:    identity,
		displayName: displayName,
		log:         log.Named("stream"),
		minBackoff:  time.Second,
		maxBackoff:  30 * time.Second,
		events:      make(chan protocol.Event, 64),
		out:         make(chan []byte, 16),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns decoded server events.
func (s *Stream) Events() <-chan protocol.Event {
	return s.events
}

// Chat queues a chat_message for the current connection.
func (s *Stream) Chat(content string) error {
	return s.send(protocol.Inbound{Type: protocol.TypeChatMessage, Content: content})
}

// Typing queues a typing indicator.
func (s *Stream) Typing(on bool) error {
	return s.send(protocol.Inbound{Type: protocol.TypeTyping, IsTyping: on})
}

func (s *Stream) send(in protocol.Inbound) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	select {
	case s.out <- data:
		return nil
	case <-s.done:
		return fmt.Errorf("stream closed")
	default:
		return fmt.Errorf("outbound queue full")
	}
}

// Close stops Run.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

// Run connects and reconnects until ctx is done or Close is called.
func (s *Stream) Run(ctx context.Context) error {
	wsURL, err := s.url()
	if err != nil {
		return err
	}

	backoff := s.minBackoff
	for {
		connected, err := s.connect(ctx, wsURL)
		if err != nil {
			s.log.Warn("websocket connection error", zap.Error(err))
		}
		if connected {
			backoff = s.minBackoff
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		default:
		}

		s.log.Info("reconnecting", zap.Duration("in", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// connect runs one connection. It reports whether the dial succeeded.
func (s *Stream) connect(ctx context.Context, wsURL string) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	s.log.Debug("connected", zap.String("room", s.room), zap.String("identity", s.identity))

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var ev protocol.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				s.log.Debug("undecodable event", zap.Error(err))
				continue
			}
			select {
			case s.events <- ev:
			default:
				s.log.Warn("event channel full, dropping event", zap.String("type", ev.Type))
			}
		}
	}()

	for {
		select {
		case err := <-readErr:
			return true, fmt.Errorf("read: %w", err)
		case data := <-s.out:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return true, fmt.Errorf("write: %w", err)
			}
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return true, nil
		case <-s.done:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return true, nil
		}
	}
}

func (s *Stream) url() (string, error) {
	u, err := url.Parse(s.serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	base := strings.TrimRight(u.Path, "/")
	u.Path = base + "/api/chat/" + s.room + "/ws"
	u.RawPath = base + roomPath(s.room, "/ws")
	q := u.Query()
	q.Set("identity", s.identity)
	if s.displayName != "" {
		q.Set("displayName", s.displayName)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
