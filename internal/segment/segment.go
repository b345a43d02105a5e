// Package segment finds sentence boundaries in a growing text buffer so speech
// playback can start before a reply is finished.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Cursor records how far a buffer has been consumed. Start is the offset where
// the next sentence begins; Scanned is the offset up to which the buffer has
// already been searched for boundaries.
type Cursor struct {
	Start   int
	Scanned int
}

// Scan searches text[cur.Scanned:] for sentence ends and returns the sentences
// completed since the previous call together with the advanced cursor. A
// sentence ends at a run of '.', '!' or '?' (optionally followed by closing
// quotes or brackets) that is followed by whitespace. A run at the very end of
// text stays pending until more text arrives or the caller flushes Tail.
//
// text must be the same buffer passed previously, possibly extended.
func Scan(text string, cur Cursor) ([]string, Cursor) {
	cur = clamp(cur, len(text))

	var out []string
	i := cur.Scanned
	for i < len(text) {
		if !isTerminal(text[i]) {
			i++
			continue
		}
		end := i
		for end < len(text) && isTerminal(text[end]) {
			end++
		}
		for end < len(text) && isCloser(text[end]) {
			end++
		}
		if end == len(text) {
			// The next chunk decides whether this run ends a sentence.
			cur.Scanned = i
			return out, cur
		}
		if !startsWithSpace(text[end:]) {
			i = end
			continue
		}
		if s := strings.TrimSpace(text[cur.Start:end]); Speakable(s) {
			out = append(out, s)
		}
		cur.Start = end
		i = end
	}
	cur.Scanned = len(text)
	return out, cur
}

// Tail returns the trimmed text after the last boundary.
func Tail(text string, cur Cursor) string {
	cur = clamp(cur, len(text))
	return strings.TrimSpace(text[cur.Start:])
}

func clamp(cur Cursor, n int) Cursor {
	if cur.Start < 0 {
		cur.Start = 0
	}
	if cur.Start > n {
		cur.Start = n
	}
	if cur.Scanned < cur.Start {
		cur.Scanned = cur.Start
	}
	if cur.Scanned > n {
		cur.Scanned = n
	}
	return cur
}

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isCloser(c byte) bool {
	switch c {
	case '"', '\'', ')', ']':
		return true
	default:
		return false
	}
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

// Speakable reports whether s has any letter or digit, so punctuation-only
// fragments such as a stray "..." are never sent to speech.
func Speakable(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
