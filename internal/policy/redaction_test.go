package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "I think you should email me at sam@example.com or call +1 (555) 123-9876, card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "4242") {
		t.Fatalf("card digits leaked: %q", out)
	}
}

func TestRedactPIILeavesPlainOpinions(t *testing.T) {
	input := "I believe remote work is here to stay"
	out, changed := RedactPII(input)
	if changed || out != input {
		t.Fatalf("RedactPII(%q) = (%q, %v), want unchanged", input, out, changed)
	}
}
