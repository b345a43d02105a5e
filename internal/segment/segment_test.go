package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanWholeBuffer(t *testing.T) {
	got, cur := Scan("Hello there. How are you? Fine", Cursor{})
	assert.Equal(t, []string{"Hello there.", "How are you?"}, got)
	assert.Equal(t, "Fine", Tail("Hello there. How are you? Fine", cur))
}

func TestScanIncrementalNeverReemits(t *testing.T) {
	chunks := []string{"Hel", "lo wor", "ld! Th", "is is", " gre", "at. And", " more", "?"}
	var (
		buf  string
		cur  Cursor
		seen []string
	)
	for _, c := range chunks {
		buf += c
		var got []string
		got, cur = Scan(buf, cur)
		seen = append(seen, got...)
	}
	assert.Equal(t, []string{"Hello world!", "This is great."}, seen)
	assert.Equal(t, "And more?", Tail(buf, cur))
}

func TestScanKeepsTrailingPunctuationPending(t *testing.T) {
	got, cur := Scan("Pi is 3.", Cursor{})
	assert.Empty(t, got)
	assert.Equal(t, 7, cur.Scanned)

	got, cur = Scan("Pi is 3.14 roughly. Yes", cur)
	assert.Equal(t, []string{"Pi is 3.14 roughly."}, got)
	assert.Equal(t, "Yes", Tail("Pi is 3.14 roughly. Yes", cur))
}

func TestScanOnlyLooksAtUnscannedSuffix(t *testing.T) {
	text := "One. Two"
	_, cur := Scan(text, Cursor{})
	require.Equal(t, len(text), cur.Scanned)
	require.Equal(t, 4, cur.Start)

	got, next := Scan(text, cur)
	assert.Empty(t, got)
	assert.Equal(t, cur, next)
}

func TestScanDoesNotSplitInsideWords(t *testing.T) {
	got, cur := Scan("Version 3.14 is out and e.g.this stays ", Cursor{})
	assert.Empty(t, got)
	assert.Equal(t, 0, cur.Start)
}

func TestScanHandlesPunctuationRunsAndQuotes(t *testing.T) {
	text := `Really?! She said "wow." Then left... ok`
	got, _ := Scan(text, Cursor{})
	assert.Equal(t, []string{"Really?!", `She said "wow."`, "Then left..."}, got)
}

func TestScanSkipsPunctuationOnlyFragments(t *testing.T) {
	got, _ := Scan("Hi. ... ! Bye. ", Cursor{})
	assert.Equal(t, []string{"Hi.", "Bye."}, got)
}

func TestScanSentencesAreOrderedSubstrings(t *testing.T) {
	text := "First sentence here.  Second one!\nThird? Trailing words"
	got, _ := Scan(text, Cursor{})
	pos := 0
	for _, s := range got {
		idx := strings.Index(text[pos:], s)
		require.GreaterOrEqual(t, idx, 0, "sentence %q not found in order", s)
		pos += idx + len(s)
		assert.Contains(t, ".!?", s[len(s)-1:])
	}
	assert.Len(t, got, 3)
}

func TestScanClampsStaleCursor(t *testing.T) {
	got, cur := Scan("Hi.", Cursor{Start: 10, Scanned: 20})
	assert.Empty(t, got)
	assert.Equal(t, Cursor{Start: 3, Scanned: 3}, cur)
}

func BenchmarkScanIncremental(b *testing.B) {
	tokens := strings.Fields(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var (
			sb  strings.Builder
			cur Cursor
		)
		for _, tok := range tokens {
			sb.WriteString(tok)
			sb.WriteByte(' ')
			_, cur = Scan(sb.String(), cur)
		}
	}
}

func TestSpeakable(t *testing.T) {
	assert.True(t, Speakable("Bye"))
	assert.True(t, Speakable("42!"))
	assert.False(t, Speakable("..."))
	assert.False(t, Speakable(" ?! "))
	assert.False(t, Speakable(""))
}
