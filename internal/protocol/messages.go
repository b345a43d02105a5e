// Package protocol defines the JSON messages exchanged over /ws/chat.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeStartTopic    MessageType = "start_topic"
	TypeMessage       MessageType = "message"
	TypeStop          MessageType = "stop"
	TypeSetPreference MessageType = "set_preference"

	TypeToken       MessageType = "token"
	TypeSentence    MessageType = "sentence"
	TypeComplete    MessageType = "complete"
	TypeError       MessageType = "error"
	TypeSystemEvent MessageType = "system_event"
)

// Error codes carried by error events.
const (
	CodeTransportError    = "transport_error"
	CodeModelUnavailable  = "model_unavailable"
	CodeGenerationTimeout = "generation_timeout"
	CodeProtocolViolation = "protocol_violation"
	CodeGenerationFailed  = "generation_failed"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type StartTopic struct {
	Type         MessageType `json:"type"`
	Topic        string      `json:"topic"`
	TopicContext string      `json:"topicContext"`
}

// HistoryItem is the client's view of a past turn. The server keeps its own
// log and only reads these for diagnostics.
type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type UserMessage struct {
	Type         MessageType   `json:"type"`
	Text         string        `json:"text"`
	Topic        string        `json:"topic,omitempty"`
	TopicContext string        `json:"topicContext,omitempty"`
	History      []HistoryItem `json:"history,omitempty"`
}

// Stop ends the session. With a topic active the host says goodbye first
// unless SkipFarewell is set.
type Stop struct {
	Type         MessageType `json:"type"`
	Reason       string      `json:"reason,omitempty"`
	SkipFarewell bool        `json:"skip_farewell,omitempty"`
}

type SetPreference struct {
	Type  MessageType `json:"type"`
	Key   string      `json:"key"`
	Value string      `json:"value"`
}

type Token struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

type Sentence struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	Final   bool        `json:"final,omitempty"`
}

type Complete struct {
	Type    MessageType  `json:"type"`
	Content string       `json:"content"`
	History []types.Turn `json:"history"`
	State   string       `json:"state"`
}

type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
	State     string      `json:"state,omitempty"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeStartTopic:
		var msg StartTopic
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Topic = strings.TrimSpace(msg.Topic)
		msg.TopicContext = strings.TrimSpace(msg.TopicContext)
		return msg, nil
	case TypeMessage:
		var msg UserMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Text = strings.TrimSpace(msg.Text)
		return msg, nil
	case TypeStop:
		var msg Stop
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeSetPreference:
		var msg SetPreference
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Key = strings.TrimSpace(msg.Key)
		if msg.Key == "" {
			return nil, errors.New("invalid set_preference: key is required")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// Encode serializes an outbound message.
func Encode(msg any) ([]byte, error) {
	return sonic.Marshal(msg)
}

// TypeOf returns the wire type of a message, for metrics.
func TypeOf(msg any) MessageType {
	switch m := msg.(type) {
	case StartTopic:
		return m.Type
	case UserMessage:
		return m.Type
	case Stop:
		return m.Type
	case SetPreference:
		return m.Type
	case Invalid:
		return "invalid"
	case Token:
		return m.Type
	case Sentence:
		return m.Type
	case Complete:
		return m.Type
	case ErrorEvent:
		return m.Type
	case SystemEvent:
		return m.Type
	default:
		return "unknown"
	}
}

// Invalid stands in for an inbound frame that could not be parsed, so the
// connection task can answer it in order with the rest of the stream.
type Invalid struct {
	Reason string
}
