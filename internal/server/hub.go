package server

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/config"
	apperrors "github.com/corvino/graphtalk/internal/errors"
	"github.com/corvino/graphtalk/internal/protocol"
	"github.com/corvino/graphtalk/internal/store"
)

// retireTimeout bounds how long the janitor waits on one busy room.
const retireTimeout = time.Second

// Hub maps room keys to their single live Room actor.
type Hub struct {
	store store.Log
	cfg   config.RoomConfig
	log   *zap.Logger

	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool
}

// NewHub creates an empty registry. Rooms are started on first reference.
func NewHub(messages store.Log, cfg config.RoomConfig, log *zap.Logger) *Hub {
	return &Hub{
		store: messages,
		cfg:   cfg,
		log:   log.Named("hub"),
		rooms: make(map[string]*Room),
	}
}

// GetOrCreateRoom returns the room for key, starting its actor if needed.
// Concurrent calls for the same key always return the same *Room.
func (h *Hub) GetOrCreateRoom(key string) (*Room, error) {
	if strings.TrimSpace(key) == "" {
		return nil, apperrors.ErrInvalidKey
	}

	h.mu.RLock()
	r, ok := h.rooms[key]
	closed := h.closed
	h.mu.RUnlock()
	if ok {
		return r, nil
	}
	if closed {
		return nil, apperrors.ErrRoomClosed
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Double-check after acquiring write lock.
	if r, ok = h.rooms[key]; ok {
		return r, nil
	}
	if h.closed {
		return nil, apperrors.ErrRoomClosed
	}
	r = newRoom(key, h.cfg, h.store, h.log.Named("room"))
	h.rooms[key] = r
	h.log.Debug("room created", zap.String("room", key))
	return r, nil
}

// GetRoom returns a room or nil if it is not live.
func (h *Hub) GetRoom(key string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[key]
}

// forget drops r from the map if it is still registered under its key.
func (h *Hub) forget(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[r.key] == r {
		delete(h.rooms, r.key)
	}
}

// withRoom runs fn against the live room for key. If the room retired
// before fn's command was accepted, the key is resolved again.
func (h *Hub) withRoom(ctx context.Context, key string, fn func(*Room) error) error {
	for {
		r, err := h.GetOrCreateRoom(key)
		if err != nil {
			return err
		}
		err = fn(r)
		if !errors.Is(err, apperrors.ErrRoomClosed) {
			return err
		}
		h.forget(r)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Connect adds s to the room for key and returns the room that accepted it.
func (h *Hub) Connect(ctx context.Context, key string, s *Session) (*Room, error) {
	var room *Room
	err := h.withRoom(ctx, key, func(r *Room) error {
		room = r
		return r.Connect(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Send posts a message to the room for key.
func (h *Hub) Send(ctx context.Context, key string, req protocol.SendRequest) (protocol.Message, error) {
	var msg protocol.Message
	err := h.withRoom(ctx, key, func(r *Room) error {
		var err error
		msg, err = r.Send(ctx, req)
		return err
	})
	return msg, err
}

// History reads a page of the room's message log.
func (h *Hub) History(ctx context.Context, key string, limit, offset int) (protocol.HistoryResponse, error) {
	var page protocol.HistoryResponse
	err := h.withRoom(ctx, key, func(r *Room) error {
		var err error
		page, err = r.History(ctx, limit, offset)
		return err
	})
	return page, err
}

// Info describes the room for key.
func (h *Hub) Info(ctx context.Context, key string) (protocol.InfoResponse, error) {
	var info protocol.InfoResponse
	err := h.withRoom(ctx, key, func(r *Room) error {
		var err error
		info, err = r.Info(ctx)
		return err
	})
	return info, err
}

// ListRooms returns a summary of every live room, sorted by key.
func (h *Hub) ListRooms(ctx context.Context) []protocol.RoomInfo {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	out := make([]protocol.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		info, err := r.Snapshot(ctx)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b protocol.RoomInfo) int {
		return strings.Compare(a.RoomKey, b.RoomKey)
	})
	return out
}

// RoomCount returns the number of live rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Run evicts idle rooms every JanitorInterval until ctx is done. An
// IdleTimeout of zero disables eviction.
func (h *Hub) Run(ctx context.Context) error {
	if h.cfg.IdleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(h.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := h.sweep(ctx, now); n > 0 {
				h.log.Info("evicted idle rooms", zap.Int("count", n), zap.Int("live", h.RoomCount()))
			}
		}
	}
}

// sweep retires every room idle since before now-IdleTimeout. Rooms are
// asked without holding the lock, so a room stuck in storage only delays
// the sweep. A lookup that lands on a room as it retires gets
// ErrRoomClosed and resolves the key again.
func (h *Hub) sweep(ctx context.Context, now time.Time) int {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	evicted := 0
	for _, r := range rooms {
		rctx, cancel := context.WithTimeout(ctx, retireTimeout)
		retired := r.retire(rctx, now)
		cancel()
		if !retired {
			select {
			case <-r.done:
			default:
				continue
			}
		}
		h.forget(r)
		evicted++
	}
	return evicted
}

// CloseAll stops every room and refuses new ones.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	h.log.Info("all rooms closed", zap.Int("count", len(rooms)))
}
