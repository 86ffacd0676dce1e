package story

import (
	"slices"
	"time"
)

const (
	RoleNarrator = "narrator"
	RolePlayer   = "player"
)

// Message is one entry in an owner's story log. Order is append-only;
// the only destructive rewrite is tag compaction.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message stamped with the current time.
func NewMessage(role, content string, tags []string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Tags:      tags,
		Timestamp: time.Now().UTC(),
	}
}

// HasTag reports whether the message carries the given tag.
func (m Message) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// CompactByTag removes every message carrying tag and inserts replacement at
// the position the earliest removed message occupied. Messages without the
// tag keep their relative order. It returns the rewritten log and the number
// of messages removed; a zero count means no message carried the tag and the
// input is returned unchanged.
func CompactByTag(messages []Message, tag string, replacement Message) ([]Message, int) {
	firstIdx := -1
	removed := 0
	for i := range messages {
		if messages[i].HasTag(tag) {
			firstIdx = i
			break
		}
	}
	if firstIdx < 0 {
		return messages, 0
	}

	out := make([]Message, 0, len(messages))
	for i := range messages {
		if messages[i].HasTag(tag) {
			removed++
			continue
		}
		if len(out) == firstIdx {
			out = append(out, replacement)
		}
		out = append(out, messages[i])
	}
	// All remaining messages were tagged; the summary goes at the end.
	if len(out) == firstIdx {
		out = append(out, replacement)
	}
	return out, removed
}
