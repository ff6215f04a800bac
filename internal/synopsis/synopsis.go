// Package synopsis renders a room's history as a markdown digest.
package synopsis

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/corvino/graphtalk/internal/protocol"
)

// Build creates a markdown digest from a room's messages, oldest first.
// Times are rendered in loc.
func Build(room string, messages []protocol.Message, now time.Time, loc *time.Location) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Graph Chat Digest: %s\n\n", now.In(loc).Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "**Room**: %s\n", room)

	names := lo.Uniq(lo.Map(messages, func(m protocol.Message, _ int) string { return label(m) }))
	slices.Sort(names)
	fmt.Fprintf(&b, "**Participants**: %s\n", strings.Join(names, ", "))

	if len(messages) > 0 {
		first := messages[0].Timestamp.In(loc).Format("2006-01-02 15:04:05")
		last := messages[len(messages)-1].Timestamp.In(loc).Format("2006-01-02 15:04:05")
		fmt.Fprintf(&b, "**Time range**: %s to %s\n", first, last)
	}
	fmt.Fprintf(&b, "**Messages**: %d\n", len(messages))
	fmt.Fprintf(&b, "\n---\n\n## Transcript\n\n")

	for _, m := range messages {
		ts := m.Timestamp.In(loc).Format("15:04:05")
		fmt.Fprintf(&b, "[%s] **%s**: %s", ts, label(m), m.Content)
		if m.NodeReference != nil {
			fmt.Fprintf(&b, " *(node `%s`)*", *m.NodeReference)
		}
		fmt.Fprintf(&b, "\n\n")
	}

	refs := lo.Uniq(lo.FilterMap(messages, func(m protocol.Message, _ int) (string, bool) {
		if m.NodeReference == nil || *m.NodeReference == "" {
			return "", false
		}
		return *m.NodeReference, true
	}))
	if len(refs) > 0 {
		fmt.Fprintf(&b, "---\n\n## Referenced nodes\n\n")
		for _, ref := range refs {
			n := lo.CountBy(messages, func(m protocol.Message) bool {
				return m.NodeReference != nil && *m.NodeReference == ref
			})
			fmt.Fprintf(&b, "- `%s` (%d)\n", ref, n)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "---\n\n## Notes\n\n")
	fmt.Fprintf(&b, "*Add decisions and follow-ups here.*\n\n")
	fmt.Fprintf(&b, "- \n")

	return b.String()
}

func label(m protocol.Message) string {
	if m.DisplayName == "" || m.DisplayName == m.Identity {
		return m.Identity
	}
	return fmt.Sprintf("%s (%s)", m.DisplayName, m.Identity)
}
