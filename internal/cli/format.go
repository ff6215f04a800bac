package cli

import (
	"fmt"
	"strings"

	"github.com/gookit/color"

	"github.com/corvino/graphtalk/internal/protocol"
)

// formatMessage formats a stored message for human-readable output.
func formatMessage(m protocol.Message) string {
	return formatLine(m.Timestamp.Local().Format("15:04:05"), author(m.Identity, m.DisplayName), m.Content, m.NodeReference)
}

func formatLine(ts, who, content string, node *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", ts, who, content)
	if node != nil && *node != "" {
		fmt.Fprintf(&b, " (node %s)", *node)
	}
	return b.String()
}

func author(identity, displayName string) string {
	if displayName == "" || displayName == identity {
		return identity
	}
	return fmt.Sprintf("%s (%s)", displayName, identity)
}

// formatEvent formats a live event. It returns "" for events not worth
// printing.
func formatEvent(ev protocol.Event, colored bool) string {
	ts := ev.Timestamp.Local().Format("15:04:05")
	who := author(ev.Identity, ev.DisplayName)
	if colored && ev.Identity != "" {
		who = identityColor(ev.Identity).Render(who)
	}

	switch ev.Type {
	case protocol.TypeChatMessage:
		return formatLine(ts, who, ev.Content, ev.NodeRef)
	case protocol.TypeUserJoined:
		return fmt.Sprintf("[%s] --- %s joined", ts, who)
	case protocol.TypeUserLeft:
		return fmt.Sprintf("[%s] --- %s left", ts, who)
	case protocol.TypeConnected:
		names := make([]string, 0, len(ev.ActiveUsers))
		for _, u := range ev.ActiveUsers {
			names = append(names, author(u.Identity, u.DisplayName))
		}
		return fmt.Sprintf("[%s] --- connected to %s, online: %s", ts, ev.RoomKey, strings.Join(names, ", "))
	case protocol.TypeError:
		line := "error: " + ev.Message
		if colored {
			line = color.FgRed.Render(line)
		}
		return line
	default:
		return ""
	}
}

var identityColors = []color.Color{
	color.FgCyan,
	color.FgGreen,
	color.FgYellow,
	color.FgMagenta,
	color.FgBlue,
	color.FgRed,
	color.FgLightCyan,
	color.FgLightGreen,
}

// identityColor returns a deterministic color for an identity.
func identityColor(identity string) color.Color {
	var h uint32
	for _, c := range identity {
		h = h*31 + uint32(c)
	}
	return identityColors[h%uint32(len(identityColors))]
}
