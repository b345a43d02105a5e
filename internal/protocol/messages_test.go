package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestParseClientMessageStartTopic(t *testing.T) {
	raw := []byte(`{"type":"start_topic","topic":"  Rust borrow checker ","topicContext":""}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	start, ok := msg.(StartTopic)
	if !ok {
		t.Fatalf("message type = %T, want StartTopic", msg)
	}
	if start.Topic != "Rust borrow checker" || start.TopicContext != "" {
		t.Fatalf("unexpected start_topic: %+v", start)
	}
}

func TestParseClientMessageUserMessage(t *testing.T) {
	raw := []byte(`{"type":"message","text":"I think AI is overhyped. ","topic":"AI","history":[{"role":"assistant","content":"Hi"}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	user, ok := msg.(UserMessage)
	if !ok {
		t.Fatalf("message type = %T, want UserMessage", msg)
	}
	if user.Text != "I think AI is overhyped." {
		t.Fatalf("Text = %q", user.Text)
	}
	if len(user.History) != 1 || user.History[0].Role != "assistant" {
		t.Fatalf("History = %+v", user.History)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsBadPayloads(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"set_preference","key":"  ","value":"x"}`,
		`{"type":"message","text":42}`,
	} {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) expected error", raw)
		}
	}
}

func TestEncodeSentenceOmitsFalseFinal(t *testing.T) {
	raw, err := Encode(Sentence{Type: TypeSentence, Content: "Hello."})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got := string(raw); strings.Contains(got, "final") || !strings.Contains(got, `"type":"sentence"`) {
		t.Fatalf("Encode() = %s", got)
	}

	raw, _ = Encode(Sentence{Type: TypeSentence, Content: "Bye", Final: true})
	if !strings.Contains(string(raw), `"final":true`) {
		t.Fatalf("Encode() = %s, want final flag", raw)
	}
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf(Token{Type: TypeToken}); got != TypeToken {
		t.Fatalf("TypeOf(Token) = %q", got)
	}
	if got := TypeOf(struct{}{}); got != "unknown" {
		t.Fatalf("TypeOf(other) = %q, want unknown", got)
	}
}
