package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corvino/graphtalk/internal/protocol"
)

// Transport delivers encoded server events to one connected client. Send
// must not block the caller and must not modify data, which is shared by
// every recipient of a broadcast. An error means the client can no longer
// be reached and the session is dropped.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Session is one live connection in a room. It is owned by the room actor
// that accepted it and is never shared with another room.
type Session struct {
	ID          string
	RoomKey     string
	Identity    string
	DisplayName string
	JoinedAt    time.Time

	transport Transport
}

// NewSession creates a session for identity. An empty displayName falls
// back to the identity.
func NewSession(roomKey, identity, displayName string, t Transport) *Session {
	if displayName == "" {
		displayName = identity
	}
	return &Session{
		ID:          uuid.NewString(),
		RoomKey:     roomKey,
		Identity:    identity,
		DisplayName: displayName,
		JoinedAt:    time.Now().UTC(),
		transport:   t,
	}
}

func (s *Session) summary() protocol.UserSummary {
	return protocol.UserSummary{
		Identity:    s.Identity,
		DisplayName: s.DisplayName,
		JoinedAt:    s.JoinedAt,
	}
}

// send encodes ev and hands it to the transport.
func (s *Session) send(ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.transport.Send(data)
}
