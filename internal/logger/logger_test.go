package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestContextFieldsAreInherited(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { base = newBase() })

	ctx := WithField(context.Background(), "session_id", "s1")
	ctx = WithField(ctx, "phase", "ASK")
	Infof(ctx, "committed %d turns", 2)

	line := buf.String()
	for _, want := range []string{"session_id=s1", "phase=ASK", "committed 2 turns"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestConfigureRejectsUnknownFormat(t *testing.T) {
	t.Cleanup(func() { base = newBase() })
	if err := Configure(Options{Format: "xml"}); err == nil {
		t.Fatalf("Configure() expected error for unknown format")
	}
	if err := Configure(Options{Level: "verbose"}); err == nil {
		t.Fatalf("Configure() expected error for unknown level")
	}
	if err := Configure(Options{Level: "debug", Format: "json"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
}
