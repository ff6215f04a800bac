package synopsis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/corvino/graphtalk/internal/protocol"
)

func TestBuild(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	node := "n42"
	messages := []protocol.Message{
		{Identity: "u2", DisplayName: "u2", Content: "first", Timestamp: base},
		{Identity: "u1", DisplayName: "Alice", Content: "look here", Timestamp: base.Add(time.Minute), NodeReference: &node},
		{Identity: "u2", DisplayName: "u2", Content: "same node", Timestamp: base.Add(2 * time.Minute), NodeReference: &node},
	}

	out := Build("g1", messages, base.Add(time.Hour), time.UTC)

	assert.Contains(t, out, "# Graph Chat Digest: 2026-03-01 10:30")
	assert.Contains(t, out, "**Room**: g1\n")
	assert.Contains(t, out, "**Participants**: Alice (u1), u2\n")
	assert.Contains(t, out, "**Time range**: 2026-03-01 09:30:00 to 2026-03-01 09:32:00\n")
	assert.Contains(t, out, "**Messages**: 3\n")
	assert.Contains(t, out, "[09:31:00] **Alice (u1)**: look here *(node `n42`)*\n")
	assert.Contains(t, out, "- `n42` (2)\n")
	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "look here"))
}

func TestBuild_Empty(t *testing.T) {
	out := Build("g1", nil, time.Now(), time.UTC)

	assert.Contains(t, out, "**Messages**: 0\n")
	assert.NotContains(t, out, "Time range")
	assert.NotContains(t, out, "Referenced nodes")
}
