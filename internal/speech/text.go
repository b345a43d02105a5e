// Package speech turns finished host replies into audio for the listener.
package speech

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/segment"
)

// MaxChars bounds one synthesis request. Longer text is cut at a sentence end
// when one is close enough.
const MaxChars = 500

var (
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	fencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern   = regexp.MustCompile("`[^`]*`")
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// Sanitize removes markup and symbol noise from model text so the voice
// sounds conversational.
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = fencedCodePattern.ReplaceAllString(raw, " ")
	raw = inlineCodePattern.ReplaceAllString(raw, " ")
	raw = markdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = urlPattern.ReplaceAllString(raw, " ")

	raw = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"\\", " ",
		"/", " ",
		"|", " ",
		"#", " ",
		"~", " ",
		"<", " ",
		">", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Emoji and symbol glyphs sound wrong when read aloud.
			continue
		case isSpeechSafePunctuation(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsPunct(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return truncate(strings.TrimSpace(b.String()))
}

func isSpeechSafePunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')':
		return true
	default:
		return false
	}
}

func truncate(text string) string {
	if len(text) <= MaxChars {
		return text
	}
	if idx := strings.LastIndex(text[:MaxChars], "."); idx > 200 {
		return text[:idx+1]
	}
	cut := MaxChars
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return strings.TrimSpace(text[:cut]) + "."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// FirstSentences returns the leading n sentences of text, or the whole text
// when it holds fewer complete sentences.
func FirstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || text == "" {
		return text
	}
	sentences, cur := segment.Scan(text, segment.Cursor{})
	if tail := segment.Tail(text, cur); tail != "" {
		sentences = append(sentences, tail)
	}
	if len(sentences) == 0 {
		return text
	}
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	return strings.Join(sentences, " ")
}
