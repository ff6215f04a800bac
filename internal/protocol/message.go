package protocol

import "time"

// Message is a persisted chat message. Seq is the room-local order assigned
// by the room actor and is authoritative for history ordering.
type Message struct {
	ID            string    `json:"id"`
	RoomKey       string    `json:"roomKey"`
	Identity      string    `json:"identity"`
	DisplayName   string    `json:"displayName"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	NodeReference *string   `json:"nodeReference"`
	Seq           uint64    `json:"-"`
}

// UserSummary describes one live session in a room.
type UserSummary struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// SendRequest is the JSON body for POST /api/chat/{roomKey}/send.
type SendRequest struct {
	Identity      string  `json:"identity" validate:"required"`
	DisplayName   string  `json:"displayName,omitempty"`
	Content       string  `json:"content" validate:"required"`
	NodeReference *string `json:"nodeReference,omitempty"`
}

// SendResponse is the response for a successful REST send.
type SendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// HistoryResponse is one page of a room's message log, oldest first.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
	HasMore  bool      `json:"hasMore"`
}

// InfoResponse is the response for GET /api/chat/{roomKey}/info.
type InfoResponse struct {
	RoomKey         string        `json:"roomKey"`
	ActiveUsers     []UserSummary `json:"activeUsers"`
	ActiveUserCount int           `json:"activeUserCount"`
	TotalMessages   uint64        `json:"totalMessages"`
	RoomCreated     *time.Time    `json:"roomCreated"`
}

// RoomInfo describes a live room.
type RoomInfo struct {
	RoomKey       string `json:"roomKey"`
	Sessions      int    `json:"sessions"`
	TotalMessages uint64 `json:"totalMessages"`
}

// RoomList is the response for GET /api/rooms.
type RoomList struct {
	Rooms []RoomInfo `json:"rooms"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	UptimeSec  float64 `json:"uptimeSeconds"`
	Rooms      int     `json:"rooms"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rssBytes,omitempty"`
}

// ErrorResponse is the body of every non-2xx REST response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
