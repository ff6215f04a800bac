package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/corvino/graphtalk/internal/errors"
	"github.com/corvino/graphtalk/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTransport is a Transport over a gorilla connection. Send only enqueues;
// writePump owns all writes to the socket.
type wsTransport struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	log    *zap.Logger
}

func newWSTransport(conn *websocket.Conn, buffer int, log *zap.Logger) *wsTransport {
	return &wsTransport{
		conn:   conn,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
		log:    log,
	}
}

// Send queues an encoded frame. A full queue means the client is too slow
// and is reported as a failure so the room drops the session.
func (t *wsTransport) Send(data []byte) error {
	select {
	case <-t.closed:
		return apperrors.ErrSessionUnavailable
	default:
	}
	select {
	case t.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: outbound queue full", apperrors.ErrSessionUnavailable)
	}
}

// Close stops the write pump after it has flushed what is queued.
func (t *wsTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// writePump sends queued frames and keepalive pings to the socket.
func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()
	for {
		select {
		case data := <-t.send:
			if err := t.write(data); err != nil {
				t.log.Debug("ws write failed", zap.Error(err))
				t.Close()
				return
			}
		case <-t.closed:
			t.flush()
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.Close()
				return
			}
		}
	}
}

func (t *wsTransport) write(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) flush() {
	for {
		select {
		case data := <-t.send:
			if err := t.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump forwards client frames to the room until the socket fails, then
// disconnects the session.
func (t *wsTransport) readPump(room *Room, sessionID string) {
	defer func() {
		room.Disconnect(sessionID)
		t.Close()
		t.conn.Close()
	}()
	t.conn.SetReadLimit(maxMsgSize)
	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Debug("ws read error", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		room.Deliver(sessionID, data)
	}
}

// ServeWS upgrades the request and joins the caller to the room for key.
// identity must already be validated.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, key, identity, displayName string, log *zap.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		log.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	t := newWSTransport(conn, hub.cfg.SessionBufferSize, log)
	go t.writePump()

	session := NewSession(key, identity, displayName, t)
	room, err := hub.Connect(r.Context(), key, session)
	if err != nil {
		if !errors.Is(err, apperrors.ErrRoomFull) {
			log.Warn("ws connect failed", zap.String("room", key), zap.String("identity", identity), zap.Error(err))
			_ = session.send(protocol.NewErrorEvent(apperrors.MessageOf(err)))
			t.Close()
		}
		return
	}
	go t.readPump(room, session.ID)
}
