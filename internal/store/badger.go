package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/corvino/graphtalk/internal/config"
	"github.com/corvino/graphtalk/internal/protocol"
)

// ErrOutOfOrder is returned by Put when a message's sequence number does not
// directly follow the room counter.
var ErrOutOfOrder = errors.New("message sequence out of order")

// BadgerLog stores messages in BadgerDB.
//
// Every key of a room starts with "room:{len}:{roomKey}:" so that room keys
// containing the separator cannot collide. Under that prefix:
//
//	msg:{seq, 20-digit zero padded}  JSON record, lexicographic = sequence order
//	count                            big-endian uint64, last assigned seq
//	created                          binary time.Time
type BadgerLog struct {
	db  *badger.DB
	log *zap.Logger
}

// OpenBadger opens (or creates) a badger database at path. The special path
// config.InMemoryPath keeps everything in memory.
func OpenBadger(path string, log *zap.Logger) (*BadgerLog, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == config.InMemoryPath {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return NewBadgerLog(db, log), nil
}

// NewBadgerLog wraps an already opened database.
func NewBadgerLog(db *badger.DB, log *zap.Logger) *BadgerLog {
	return &BadgerLog{db: db, log: log.Named("store")}
}

type diskMessage struct {
	ID            string  `json:"id"`
	RoomKey       string  `json:"room"`
	Identity      string  `json:"identity"`
	DisplayName   string  `json:"displayName"`
	Content       string  `json:"content"`
	At            int64   `json:"at"`
	NodeReference *string `json:"nodeReference,omitempty"`
	Seq           uint64  `json:"seq"`
}

func roomPrefix(roomKey string) string {
	return fmt.Sprintf("room:%d:%s:", len(roomKey), roomKey)
}

func messagePrefix(roomKey string) []byte {
	return []byte(roomPrefix(roomKey) + "msg:")
}

func messageKey(roomKey string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%smsg:%020d", roomPrefix(roomKey), seq))
}

func countKey(roomKey string) []byte {
	return []byte(roomPrefix(roomKey) + "count")
}

func createdKey(roomKey string) []byte {
	return []byte(roomPrefix(roomKey) + "created")
}

// Open implements Log.
func (b *BadgerLog) Open(_ context.Context, roomKey string, now time.Time) (RoomState, error) {
	var state RoomState
	err := b.db.Update(func(txn *badger.Txn) error {
		count, err := readCount(txn, roomKey)
		if err != nil {
			return err
		}
		state.Count = count

		item, err := txn.Get(createdKey(roomKey))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			state.Created = now.UTC()
			raw, err := state.Created.MarshalBinary()
			if err != nil {
				return err
			}
			return txn.Set(createdKey(roomKey), raw)
		case err != nil:
			return err
		}
		return item.Value(func(val []byte) error {
			return state.Created.UnmarshalBinary(val)
		})
	})
	if err != nil {
		return RoomState{}, fmt.Errorf("open room %q: %w", roomKey, err)
	}
	return state, nil
}

// Put implements Log. The message and the counter are written in one
// transaction.
func (b *BadgerLog) Put(_ context.Context, msg protocol.Message) error {
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		count, err := readCount(txn, msg.RoomKey)
		if err != nil {
			return err
		}
		if msg.Seq != count+1 {
			return fmt.Errorf("%w: room %q at %d, got %d", ErrOutOfOrder, msg.RoomKey, count, msg.Seq)
		}
		if err := txn.Set(messageKey(msg.RoomKey, msg.Seq), bytes); err != nil {
			return err
		}
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], msg.Seq)
		return txn.Set(countKey(msg.RoomKey), raw[:])
	})
	if err != nil {
		return fmt.Errorf("store message %s: %w", msg.ID, err)
	}
	return nil
}

// Page implements Log. Sequence numbers are dense, so the page starts by
// seeking straight to seq offset+1 instead of skipping entries.
func (b *BadgerLog) Page(_ context.Context, roomKey string, offset, limit int) ([]protocol.Message, uint64, error) {
	var (
		total uint64
		out   []protocol.Message
	)
	err := b.db.View(func(txn *badger.Txn) error {
		count, err := readCount(txn, roomKey)
		if err != nil {
			return err
		}
		total = count
		if limit <= 0 || offset < 0 || uint64(offset) >= count {
			return nil
		}

		prefix := messagePrefix(roomKey)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(messageKey(roomKey, uint64(offset)+1)); it.ValidForPrefix(prefix); it.Next() {
			if len(out) == limit {
				break
			}
			msg, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("read history of %q: %w", roomKey, err)
	}
	return out, total, nil
}

// List implements Log with a full prefix scan.
func (b *BadgerLog) List(_ context.Context, roomKey string) ([]protocol.Message, error) {
	var out []protocol.Message
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(roomKey)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			msg, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages of %q: %w", roomKey, err)
	}
	return out, nil
}

// Close implements Log.
func (b *BadgerLog) Close() error {
	b.log.Info("closing badger")
	return b.db.Close()
}

func readCount(txn *badger.Txn, roomKey string) (uint64, error) {
	item, err := txn.Get(countKey(roomKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt counter for room %q", roomKey)
		}
		count = binary.BigEndian.Uint64(val)
		return nil
	})
	return count, err
}

func decodeItem(item *badger.Item) (protocol.Message, error) {
	var dm diskMessage
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &dm)
	})
	if err != nil {
		return protocol.Message{}, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	return toMessage(dm), nil
}

func fromMessage(msg protocol.Message) diskMessage {
	return diskMessage{
		ID:            msg.ID,
		RoomKey:       msg.RoomKey,
		Identity:      msg.Identity,
		DisplayName:   msg.DisplayName,
		Content:       msg.Content,
		At:            msg.Timestamp.UnixNano(),
		NodeReference: msg.NodeReference,
		Seq:           msg.Seq,
	}
}

func toMessage(dm diskMessage) protocol.Message {
	return protocol.Message{
		ID:            dm.ID,
		RoomKey:       dm.RoomKey,
		Identity:      dm.Identity,
		DisplayName:   dm.DisplayName,
		Content:       dm.Content,
		Timestamp:     time.Unix(0, dm.At).UTC(),
		NodeReference: dm.NodeReference,
		Seq:           dm.Seq,
	}
}
