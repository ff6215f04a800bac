package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/config"
	apperrors "github.com/corvino/graphtalk/internal/errors"
	"github.com/corvino/graphtalk/internal/protocol"
	"github.com/corvino/graphtalk/internal/store"
)

// Commands accepted by a room's mailbox.
type (
	connectCmd struct {
		session *Session
		reply   chan result[struct{}]
	}
	disconnectCmd struct {
		sessionID string
	}
	inboundCmd struct {
		sessionID string
		data      []byte
	}
	sendCmd struct {
		ctx   context.Context
		req   protocol.SendRequest
		reply chan result[protocol.Message]
	}
	historyCmd struct {
		ctx           context.Context
		limit, offset int
		reply         chan result[protocol.HistoryResponse]
	}
	infoCmd struct {
		ctx   context.Context
		reply chan result[protocol.InfoResponse]
	}
	snapshotCmd struct {
		reply chan result[protocol.RoomInfo]
	}
	retireCmd struct {
		now   time.Time
		reply chan result[bool]
	}
	closeCmd struct{}
)

type result[T any] struct {
	val T
	err error
}

// Room is the actor owning one room's live sessions and message counter.
// Every field below the mailbox is touched only by the run goroutine.
type Room struct {
	key   string
	cfg   config.RoomConfig
	store store.Log
	log   *zap.Logger

	commands chan any
	done     chan struct{}

	sessions   []*Session // in join order
	count      uint64
	created    time.Time
	loaded     bool
	lastActive time.Time
	lastStamp  time.Time
}

func newRoom(key string, cfg config.RoomConfig, messages store.Log, logger *zap.Logger) *Room {
	r := &Room{
		key:        key,
		cfg:        cfg,
		store:      messages,
		log:        logger.With(zap.String("room", key)),
		commands:   make(chan any, cfg.MailboxSize),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
	go r.run()
	return r
}

// Key returns the room key.
func (r *Room) Key() string { return r.key }

// Done is closed once the actor has stopped.
func (r *Room) Done() <-chan struct{} { return r.done }

// Connect adds s to the room. The session receives a connected event and
// everyone else a user_joined event.
func (r *Room) Connect(ctx context.Context, s *Session) error {
	_, err := ask(ctx, r, func(reply chan result[struct{}]) any {
		return connectCmd{session: s, reply: reply}
	})
	return err
}

// Disconnect removes a session. Unknown sessions are ignored.
func (r *Room) Disconnect(sessionID string) {
	r.tell(disconnectCmd{sessionID: sessionID})
}

// Deliver queues a raw client frame from sessionID.
func (r *Room) Deliver(sessionID string, data []byte) {
	r.tell(inboundCmd{sessionID: sessionID, data: data})
}

// Send persists and broadcasts a message posted without a session. A
// context that ends before the room reaches the command cancels the send;
// once the room has started on it the outcome is always reported, so an
// error means the message was not stored.
func (r *Room) Send(ctx context.Context, req protocol.SendRequest) (protocol.Message, error) {
	reply, err := enqueue(ctx, r, func(reply chan result[protocol.Message]) any {
		return sendCmd{ctx: ctx, req: req, reply: reply}
	})
	if err != nil {
		return protocol.Message{}, err
	}
	return await(context.Background(), r, reply)
}

// History returns one page of the message log, oldest first.
func (r *Room) History(ctx context.Context, limit, offset int) (protocol.HistoryResponse, error) {
	return ask(ctx, r, func(reply chan result[protocol.HistoryResponse]) any {
		return historyCmd{ctx: ctx, limit: limit, offset: offset, reply: reply}
	})
}

// Info returns the live sessions and persisted totals.
func (r *Room) Info(ctx context.Context) (protocol.InfoResponse, error) {
	return ask(ctx, r, func(reply chan result[protocol.InfoResponse]) any {
		return infoCmd{ctx: ctx, reply: reply}
	})
}

// Snapshot returns a summary for room listings without touching storage.
func (r *Room) Snapshot(ctx context.Context) (protocol.RoomInfo, error) {
	return ask(ctx, r, func(reply chan result[protocol.RoomInfo]) any {
		return snapshotCmd{reply: reply}
	})
}

// retire stops the actor if it has been idle with no sessions and nothing
// queued. It reports whether the actor stopped.
func (r *Room) retire(ctx context.Context, now time.Time) bool {
	ok, err := ask(ctx, r, func(reply chan result[bool]) any {
		return retireCmd{now: now, reply: reply}
	})
	return err == nil && ok
}

// Close closes every session and stops the actor. It waits for the actor
// to exit.
func (r *Room) Close() {
	select {
	case r.commands <- closeCmd{}:
	case <-r.done:
		return
	}
	<-r.done
}

func (r *Room) tell(cmd any) {
	select {
	case r.commands <- cmd:
	case <-r.done:
	}
}

// ask enqueues a command and waits for its reply. A room that stops before
// answering yields ErrRoomClosed, which callers treat as "resolve again".
func ask[T any](ctx context.Context, r *Room, build func(chan result[T]) any) (T, error) {
	reply, err := enqueue(ctx, r, build)
	if err != nil {
		var zero T
		return zero, err
	}
	return await(ctx, r, reply)
}

func enqueue[T any](ctx context.Context, r *Room, build func(chan result[T]) any) (chan result[T], error) {
	reply := make(chan result[T], 1)
	select {
	case r.commands <- build(reply):
		return reply, nil
	case <-r.done:
		return nil, apperrors.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func await[T any](ctx context.Context, r *Room, reply chan result[T]) (T, error) {
	var zero T
	select {
	case res := <-reply:
		return res.val, res.err
	case <-r.done:
		select {
		case res := <-reply:
			return res.val, res.err
		default:
			return zero, apperrors.ErrRoomClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *Room) run() {
	defer close(r.done)

	if err := r.ensureLoaded(context.Background()); err != nil {
		r.log.Error("failed to load room state", zap.Error(err))
	}
	r.log.Debug("room started", zap.Uint64("messages", r.count))

	for {
		if stop := r.handle(<-r.commands); stop {
			r.log.Debug("room stopped")
			return
		}
	}
}

func (r *Room) handle(cmd any) bool {
	switch c := cmd.(type) {
	case connectCmd:
		r.lastActive = time.Now()
		c.reply <- result[struct{}]{err: r.connect(c.session)}
	case disconnectCmd:
		r.lastActive = time.Now()
		r.remove(c.sessionID, "disconnect")
	case inboundCmd:
		r.lastActive = time.Now()
		r.inbound(c.sessionID, c.data)
	case sendCmd:
		r.lastActive = time.Now()
		if err := c.ctx.Err(); err != nil {
			c.reply <- result[protocol.Message]{err: err}
			break
		}
		msg, err := r.post(context.WithoutCancel(c.ctx), c.req.Identity, c.req.DisplayName, c.req.Content, c.req.NodeReference, "")
		c.reply <- result[protocol.Message]{val: msg, err: err}
	case historyCmd:
		r.lastActive = time.Now()
		page, err := r.history(c.ctx, c.limit, c.offset)
		c.reply <- result[protocol.HistoryResponse]{val: page, err: err}
	case infoCmd:
		r.lastActive = time.Now()
		info, err := r.info(c.ctx)
		c.reply <- result[protocol.InfoResponse]{val: info, err: err}
	case snapshotCmd:
		c.reply <- result[protocol.RoomInfo]{val: protocol.RoomInfo{
			RoomKey:       r.key,
			Sessions:      len(r.sessions),
			TotalMessages: r.count,
		}}
	case retireCmd:
		idle := len(r.sessions) == 0 &&
			c.now.Sub(r.lastActive) >= r.cfg.IdleTimeout &&
			len(r.commands) == 0
		c.reply <- result[bool]{val: idle}
		return idle
	case closeCmd:
		for _, s := range r.sessions {
			_ = s.transport.Close()
		}
		r.log.Info("room closed", zap.Int("sessions", len(r.sessions)))
		r.sessions = nil
		return true
	default:
		r.log.Warn("unknown room command", zap.String("command", fmt.Sprintf("%T", cmd)))
	}
	return false
}

func (r *Room) ensureLoaded(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	state, err := r.store.Open(ctx, r.key, time.Now())
	if err != nil {
		return apperrors.NewPersistence("failed to load room", err)
	}
	r.count, r.created, r.loaded = state.Count, state.Created, true
	return nil
}

func (r *Room) connect(s *Session) error {
	if s.Identity == "" {
		return apperrors.ErrIdentityRequired
	}
	if len(r.sessions) >= r.cfg.MaxSessions {
		r.log.Warn("room full, rejecting session",
			zap.String("identity", s.Identity),
			zap.Int("sessions", len(r.sessions)))
		_ = s.send(protocol.NewErrorEvent(apperrors.ErrRoomFull.Message))
		_ = s.transport.Close()
		return apperrors.ErrRoomFull
	}

	r.sessions = append(r.sessions, s)
	now := time.Now().UTC()
	err := s.send(protocol.ConnectedEvent{
		Type:        protocol.TypeConnected,
		RoomKey:     r.key,
		Identity:    s.Identity,
		ActiveUsers: r.activeUsers(),
		Timestamp:   now,
	})
	if err != nil {
		r.sessions = r.sessions[:len(r.sessions)-1]
		_ = s.transport.Close()
		return apperrors.NewTransport(s.ID, err)
	}

	r.log.Info("session joined",
		zap.String("session", s.ID),
		zap.String("identity", s.Identity),
		zap.Int("sessions", len(r.sessions)))
	r.broadcast(protocol.PresenceEvent{
		Type:        protocol.TypeUserJoined,
		Identity:    s.Identity,
		DisplayName: s.DisplayName,
		Timestamp:   now,
		ActiveUsers: r.activeUsers(),
	}, s.ID)
	return nil
}

// remove drops a session and announces it. Removing an absent session is a
// no-op.
func (r *Room) remove(sessionID, reason string) {
	s, ok := lo.Find(r.sessions, func(s *Session) bool { return s.ID == sessionID })
	if !ok {
		return
	}
	r.sessions = lo.Reject(r.sessions, func(s *Session, _ int) bool { return s.ID == sessionID })
	_ = s.transport.Close()

	r.log.Info("session left",
		zap.String("session", s.ID),
		zap.String("identity", s.Identity),
		zap.String("reason", reason),
		zap.Int("sessions", len(r.sessions)))
	r.broadcast(protocol.PresenceEvent{
		Type:        protocol.TypeUserLeft,
		Identity:    s.Identity,
		DisplayName: s.DisplayName,
		Timestamp:   time.Now().UTC(),
		ActiveUsers: r.activeUsers(),
	}, "")
}

// broadcast sends ev to every session except the one with id except. The
// event is encoded once for all recipients. Sessions that fail are removed
// after the whole set has been tried.
func (r *Room) broadcast(ev any, except string) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("failed to encode event", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
		return
	}
	var failed []string
	for _, s := range r.sessions {
		if s.ID == except {
			continue
		}
		if err := s.transport.Send(data); err != nil {
			r.log.Debug("send failed", zap.String("session", s.ID), zap.Error(err))
			failed = append(failed, s.ID)
		}
	}
	for _, id := range failed {
		r.remove(id, "send failed")
	}
}

func (r *Room) sendTo(s *Session, ev any) {
	if err := s.send(ev); err != nil {
		r.log.Debug("send failed", zap.String("session", s.ID), zap.Error(err))
		r.remove(s.ID, "send failed")
	}
}

func (r *Room) inbound(sessionID string, data []byte) {
	s, ok := lo.Find(r.sessions, func(s *Session) bool { return s.ID == sessionID })
	if !ok {
		return
	}

	in, err := protocol.ParseInbound(data)
	if err != nil {
		r.log.Debug("malformed frame", zap.String("session", s.ID), zap.Error(err))
		r.sendTo(s, protocol.NewErrorEvent(apperrors.ErrInvalidFormat.Message))
		return
	}

	switch in.Type {
	case protocol.TypeChatMessage:
		_, err := r.post(context.Background(), s.Identity, s.DisplayName, in.Content, in.NodeReference, s.ID)
		if err != nil {
			r.sendTo(s, protocol.NewErrorEvent(apperrors.MessageOf(err)))
		}
	case protocol.TypeTyping:
		r.broadcast(protocol.TypingEvent{
			Type:        protocol.TypeTyping,
			Identity:    s.Identity,
			DisplayName: s.DisplayName,
			IsTyping:    in.IsTyping,
			Timestamp:   time.Now().UTC(),
		}, s.ID)
	case protocol.TypePing:
		r.sendTo(s, protocol.PongEvent{Type: protocol.TypePong})
	default:
		r.log.Warn("ignoring unknown message type",
			zap.String("session", s.ID),
			zap.String("type", in.Type))
	}
}

// post validates, persists and broadcasts a chat message. origin is the
// sending session, if any, and is skipped when echo is disabled.
func (r *Room) post(ctx context.Context, identity, displayName, content string, nodeRef *string, origin string) (protocol.Message, error) {
	switch {
	case identity == "":
		return protocol.Message{}, apperrors.ErrIdentityRequired
	case strings.TrimSpace(content) == "":
		return protocol.Message{}, apperrors.ErrContentRequired
	case utf8.RuneCountInString(content) > r.cfg.MaxContentLength:
		return protocol.Message{}, apperrors.ErrContentTooLong
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return protocol.Message{}, err
	}
	if displayName == "" {
		displayName = identity
	}

	seq := r.count + 1
	msg := protocol.Message{
		ID:            messageID(seq),
		RoomKey:       r.key,
		Identity:      identity,
		DisplayName:   displayName,
		Content:       content,
		Timestamp:     r.stamp(),
		NodeReference: nodeRef,
		Seq:           seq,
	}
	if err := r.store.Put(ctx, msg); err != nil {
		r.log.Error("failed to persist message", zap.String("id", msg.ID), zap.Error(err))
		return protocol.Message{}, apperrors.NewPersistence("failed to store message", err)
	}
	r.count = seq

	except := ""
	if !r.cfg.EchoToSender {
		except = origin
	}
	r.broadcast(protocol.NewChatMessageEvent(msg), except)
	return msg, nil
}

// stamp returns the current time, never earlier than the previous stamp.
func (r *Room) stamp() time.Time {
	now := time.Now().UTC()
	if now.Before(r.lastStamp) {
		now = r.lastStamp
	}
	r.lastStamp = now
	return now
}

// messageID embeds the room sequence so ids sort in acceptance order.
func messageID(seq uint64) string {
	return fmt.Sprintf("%010d-%s", seq, uuid.NewString())
}

func (r *Room) history(ctx context.Context, limit, offset int) (protocol.HistoryResponse, error) {
	if limit <= 0 {
		limit = r.cfg.DefaultPageSize
	}
	if limit > r.cfg.MaxPageSize {
		limit = r.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	msgs, total, err := r.store.Page(ctx, r.key, offset, limit)
	if err != nil {
		return protocol.HistoryResponse{}, apperrors.NewPersistence("failed to read history", err)
	}
	if msgs == nil {
		msgs = []protocol.Message{}
	}
	return protocol.HistoryResponse{
		Messages: msgs,
		Total:    int(total),
		Limit:    limit,
		Offset:   offset,
		HasMore:  uint64(offset+len(msgs)) < total,
	}, nil
}

func (r *Room) info(ctx context.Context) (protocol.InfoResponse, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return protocol.InfoResponse{}, err
	}
	created := r.created
	return protocol.InfoResponse{
		RoomKey:         r.key,
		ActiveUsers:     r.activeUsers(),
		ActiveUserCount: len(r.sessions),
		TotalMessages:   r.count,
		RoomCreated:     &created,
	}, nil
}

func (r *Room) activeUsers() []protocol.UserSummary {
	return lo.Map(r.sessions, func(s *Session, _ int) protocol.UserSummary {
		return s.summary()
	})
}
