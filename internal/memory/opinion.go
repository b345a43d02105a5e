package memory

import (
	"regexp"
	"strings"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/policy"
)

// OpinionExtractor decides whether an utterance states an opinion worth
// remembering. It never fails; no match is the common case.
type OpinionExtractor interface {
	Extract(text string) (opinion string, ok bool)
}

var opinionMarkers = []string{
	"i don't like", "i think", "i believe", "i love", "i hate", "i prefer",
	"i like", "my opinion", "in my view", "honestly", "actually", "i feel",
	"i disagree", "i agree",
}

// MarkerExtractor matches a fixed list of belief and preference phrases.
type MarkerExtractor struct {
	any     *regexp.Regexp
	leading *regexp.Regexp
}

func NewMarkerExtractor() *MarkerExtractor {
	alts := make([]string, 0, len(opinionMarkers))
	for _, m := range opinionMarkers {
		alts = append(alts, regexp.QuoteMeta(m))
	}
	group := "(?:" + strings.Join(alts, "|") + ")"
	return &MarkerExtractor{
		any:     regexp.MustCompile(`(?i)\b` + group + `\b`),
		leading: regexp.MustCompile(`(?i)^\s*` + group + `\b[\s,:]*(?:that\s+)?`),
	}
}

// Extract returns the text after a leading marker, or the whole utterance
// when the marker appears later. The result is scrubbed of PII.
func (e *MarkerExtractor) Extract(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !e.any.MatchString(text) {
		return "", false
	}
	opinion := text
	if loc := e.leading.FindStringIndex(text); loc != nil && loc[1] < len(text) {
		opinion = text[loc[1]:]
	}
	opinion = strings.TrimRight(strings.TrimSpace(opinion), ".!?…")
	opinion = strings.TrimSpace(opinion)
	if opinion == "" {
		return "", false
	}
	opinion, _ = policy.RedactPII(opinion)
	return opinion, true
}
