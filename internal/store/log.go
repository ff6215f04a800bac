//go:generate go run go.uber.org/mock/mockgen -source=log.go -destination=mocks/mock_log.go -package=mocks
package store

import (
	"context"
	"time"

	"github.com/corvino/graphtalk/internal/protocol"
)

// RoomState is the persisted part of a room that survives actor eviction.
type RoomState struct {
	Count   uint64
	Created time.Time
}

// Log is an append-only, per-room ordered message store. Messages are
// keyed by their room-local sequence number, which must be dense and start
// at 1; Put rejects anything else.
type Log interface {
	// Open returns the persisted state of a room, recording now as the
	// creation time if the room has never been seen.
	Open(ctx context.Context, roomKey string, now time.Time) (RoomState, error)
	// Put durably appends msg and advances the room counter to msg.Seq.
	Put(ctx context.Context, msg protocol.Message) error
	// Page returns up to limit messages starting at offset, oldest first,
	// and the room's total message count.
	Page(ctx context.Context, roomKey string, offset, limit int) ([]protocol.Message, uint64, error)
	// List scans every message of a room, oldest first.
	List(ctx context.Context, roomKey string) ([]protocol.Message, error)
	Close() error
}
