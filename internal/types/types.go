// Package types holds the value types shared by the conversation core.
package types

import (
	"time"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/dialogue"
)

// Role is the author of a turn or model message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a model request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is one committed exchange unit. Turns are never edited after they are
// appended to a session.
type Turn struct {
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	Phase   dialogue.Phase `json:"phase"`
	At      time.Time      `json:"timestamp"`
}

// Topic is sourced externally and only read by the core.
type Topic struct {
	ID      int     `json:"id,omitempty"`
	Title   string  `json:"title"`
	Summary string  `json:"summary,omitempty"`
	Source  string  `json:"source,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Session is the live state of one conversation. It is owned by a single
// connection task and must not be shared between goroutines.
type Session struct {
	ID        string
	ProfileID string

	Dialogue dialogue.State
	Topic    Topic
	History  []Turn
	Closed   bool
}

// HasTopic reports whether a topic has been selected.
func (s *Session) HasTopic() bool {
	return s.Topic.Title != ""
}

// Recent returns the last n turns, oldest first.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	return s.History[len(s.History)-n:]
}

// ResetTopic selects a new topic and clears the turn log.
func (s *Session) ResetTopic(t Topic) {
	s.Topic = t
	s.History = nil
}
