package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "drops emoji and markdown markers",
			in:   "Sure 😊 **let's** do this / now.",
			want: "Sure let's do this now.",
		},
		{
			name: "keeps markdown link label and removes url",
			in:   "Read [the docs](https://example.com/docs) first.",
			want: "Read the docs first.",
		},
		{
			name: "removes code blocks and inline code",
			in:   "```bash\nnpm run dev\n```\nThen run `make test` ✅",
			want: "Then run",
		},
		{
			name: "headings and bullets",
			in:   "## Big news\n* one\n* two",
			want: "Big news one two",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeTruncatesAtSentenceEnd(t *testing.T) {
	in := strings.Repeat("This sentence is filler text. ", 30)
	got := Sanitize(in)
	if len(got) > MaxChars {
		t.Fatalf("len(Sanitize()) = %d, want <= %d", len(got), MaxChars)
	}
	if !strings.HasSuffix(got, "filler text.") {
		t.Fatalf("Sanitize() = %q, want cut at a sentence end", got)
	}
}

func TestFirstSentences(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"One. Two! Three? Four", 2, "One. Two!"},
		{"Only one here", 2, "Only one here"},
		{"One. and a tail", 2, "One. and a tail"},
		{"", 2, ""},
	}
	for _, tc := range cases {
		if got := FirstSentences(tc.in, tc.n); got != tc.want {
			t.Fatalf("FirstSentences(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestPrepareRejectsUnspeakableText(t *testing.T) {
	if _, err := Prepare("```\ncode only\n```"); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("Prepare() error = %v, want ErrEmptyText", err)
	}
}

func TestMockSynthesizerReturnsWAV(t *testing.T) {
	audio, err := MockSynthesizer{}.Synthesize(context.Background(), "hello there listener")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio[:4]) != "RIFF" || string(audio[8:12]) != "WAVE" || string(audio[36:40]) != "data" {
		t.Fatalf("Synthesize() header = %q, want RIFF/WAVE/data", audio[:44])
	}
	if got := binary.LittleEndian.Uint32(audio[40:44]); int(got) != len(audio)-44 {
		t.Fatalf("data size = %d, want %d", got, len(audio)-44)
	}
	if got := binary.LittleEndian.Uint32(audio[24:28]); got != DefaultSampleRate {
		t.Fatalf("sample rate = %d, want %d", got, DefaultSampleRate)
	}
}

func TestHTTPSynthesizerQueriesCoquiEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("path = %q, want /api/tts", r.URL.Path)
		}
		if got := r.URL.Query().Get("speaker_id"); got != "p273" {
			t.Errorf("speaker_id = %q, want p273", got)
		}
		if got := r.URL.Query().Get("text"); got != "Hi there." {
			t.Errorf("text = %q, want %q", got, "Hi there.")
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFfake"))
	}))
	defer srv.Close()

	audio, err := NewHTTPSynthesizer(srv.URL+"/", "p273").Synthesize(context.Background(), "Hi there.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "RIFFfake" {
		t.Fatalf("Synthesize() = %q, want upstream body", audio)
	}
}

func TestHTTPSynthesizerMapsOverloadToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSynthesizer(srv.URL, "").Synthesize(context.Background(), "Hi.")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Synthesize() error = %v, want ErrUnavailable", err)
	}
}

func TestNewSynthesizerRequiresURLForHTTP(t *testing.T) {
	if _, err := NewSynthesizer(Config{Provider: "http"}); err == nil {
		t.Fatalf("NewSynthesizer() expected error without url")
	}
	if _, err := NewSynthesizer(Config{Provider: "mock"}); err != nil {
		t.Fatalf("NewSynthesizer(mock) error = %v", err)
	}
}
