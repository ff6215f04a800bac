package protocol

import (
	"encoding/json"
	"time"
)

// Event types exchanged over the room WebSocket.
const (
	TypeConnected   = "connected"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypeChatMessage = "chat_message"
	TypeTyping      = "typing"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// Inbound is a client frame. Fields not used by Type are ignored.
type Inbound struct {
	Type          string  `json:"type"`
	Content       string  `json:"content,omitempty"`
	NodeReference *string `json:"nodeReference,omitempty"`
	IsTyping      bool    `json:"isTyping,omitempty"`
}

// ParseInbound decodes a client frame. A frame without a type is malformed.
func ParseInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, errMissingType
	}
	return in, nil
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

const errMissingType = protocolError("missing type")

// ConnectedEvent acknowledges a new session.
type ConnectedEvent struct {
	Type        string        `json:"type"`
	RoomKey     string        `json:"roomKey"`
	Identity    string        `json:"identity"`
	ActiveUsers []UserSummary `json:"activeUsers"`
	Timestamp   time.Time     `json:"timestamp"`
}

// PresenceEvent announces a join or a leave.
type PresenceEvent struct {
	Type        string        `json:"type"`
	Identity    string        `json:"identity"`
	DisplayName string        `json:"displayName"`
	Timestamp   time.Time     `json:"timestamp"`
	ActiveUsers []UserSummary `json:"activeUsers"`
}

// ChatMessageEvent carries a persisted message to live sessions.
type ChatMessageEvent struct {
	Type string `json:"type"`
	Message
}

// TypingEvent relays a typing indicator.
type TypingEvent struct {
	Type        string    `json:"type"`
	Identity    string    `json:"identity"`
	DisplayName string    `json:"displayName"`
	IsTyping    bool      `json:"isTyping"`
	Timestamp   time.Time `json:"timestamp"`
}

// PongEvent answers a ping.
type PongEvent struct {
	Type string `json:"type"`
}

// ErrorEvent reports a rejected frame to its sender.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewChatMessageEvent wraps msg for broadcast.
func NewChatMessageEvent(msg Message) ChatMessageEvent {
	return ChatMessageEvent{Type: TypeChatMessage, Message: msg}
}

// NewErrorEvent builds an error event.
func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

// Event is a decoded server frame, used by clients.
type Event struct {
	Type        string        `json:"type"`
	RoomKey     string        `json:"roomKey,omitempty"`
	ID          string        `json:"id,omitempty"`
	Identity    string        `json:"identity,omitempty"`
	DisplayName string        `json:"displayName,omitempty"`
	Content     string        `json:"content,omitempty"`
	NodeRef     *string       `json:"nodeReference,omitempty"`
	IsTyping    bool          `json:"isTyping,omitempty"`
	Message     string        `json:"message,omitempty"`
	ActiveUsers []UserSummary `json:"activeUsers,omitempty"`
	Timestamp   time.Time     `json:"timestamp,omitempty"`
}
