package memory

import (
	"strings"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// BuildContext lays out one generation request in a fixed order: phase
// guidance, memory summary, topic context, the last window turns, then the
// pending input. It reads only its arguments.
func BuildContext(sess *types.Session, rec Record, guidance string, window int, pending types.Message) []types.Message {
	recent := sess.Recent(window)
	msgs := make([]types.Message, 0, len(recent)+4)

	msgs = append(msgs, types.Message{Role: types.RoleSystem, Content: guidance})

	if summary := rec.Summary(); summary != "" {
		msgs = append(msgs, types.Message{Role: types.RoleSystem, Content: "User memory:\n" + summary})
	}

	if sess.HasTopic() {
		var b strings.Builder
		b.WriteString("Today's discussion topic: ")
		b.WriteString(sess.Topic.Title)
		if s := strings.TrimSpace(sess.Topic.Summary); s != "" {
			b.WriteString("\n\nTopic context:\n")
			b.WriteString(s)
		}
		msgs = append(msgs, types.Message{Role: types.RoleSystem, Content: b.String()})
	}

	for _, t := range recent {
		msgs = append(msgs, types.Message{Role: t.Role, Content: t.Content})
	}

	if strings.TrimSpace(pending.Content) != "" {
		msgs = append(msgs, pending)
	}
	return msgs
}
