package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	req := require.New(t)

	in, err := ParseInbound([]byte(`{"type":"chat_message","content":"hello","nodeReference":"n-7"}`))
	req.NoError(err)
	req.Equal(TypeChatMessage, in.Type)
	req.Equal("hello", in.Content)
	req.NotNil(in.NodeReference)
	req.Equal("n-7", *in.NodeReference)

	in, err = ParseInbound([]byte(`{"type":"typing","isTyping":true}`))
	req.NoError(err)
	req.True(in.IsTyping)
}

func TestParseInbound_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"content":"no type"}`, `[]`, `{"type":42}`} {
		_, err := ParseInbound([]byte(raw))
		require.Error(t, err, raw)
	}
}

func TestChatMessageEvent_WireShape(t *testing.T) {
	req := require.New(t)

	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(NewChatMessageEvent(Message{
		ID:          "m1",
		RoomKey:     "g1",
		Identity:    "u1",
		DisplayName: "Ada",
		Content:     "hi",
		Timestamp:   at,
		Seq:         3,
	}))
	req.NoError(err)

	var got map[string]any
	req.NoError(json.Unmarshal(data, &got))
	req.Equal("chat_message", got["type"])
	req.Equal("m1", got["id"])
	req.Equal("g1", got["roomKey"])
	req.Equal("2026-10-15T12:00:00Z", got["timestamp"])
	req.Contains(got, "nodeReference")
	req.Nil(got["nodeReference"])
	req.NotContains(got, "seq")
}
