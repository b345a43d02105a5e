package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

func TestHTTPGeneratorConsumeSSE(t *testing.T) {
	g := NewHTTPGenerator("http://example.test")
	stream := strings.NewReader(strings.Join([]string{
		": keepalive",
		"event: message",
		"",
		"data: {\"delta\":\"Hel\"}",
		"",
		"data: {\"delta\":\"lo there.\"}",
		"",
		"data: [DONE]",
		"",
	}, "\n"))

	var deltas []string
	resp, err := g.consumeStreaming(context.Background(), stream, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("consumeStreaming() error = %v", err)
	}
	if resp.Text != "Hello there." {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, "Hello there.")
	}
	if strings.Join(deltas, "") != resp.Text {
		t.Fatalf("deltas = %q, want concatenation %q", strings.Join(deltas, ""), resp.Text)
	}
}

func TestHTTPGeneratorConsumeOllamaNDJSON(t *testing.T) {
	g := NewHTTPGenerator("http://example.test")
	stream := strings.NewReader(strings.Join([]string{
		`{"message":{"role":"assistant","content":"Hi"},"done":false}`,
		`{"message":{"role":"assistant","content":" there"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	}, "\n"))

	resp, err := g.consumeStreaming(context.Background(), stream, nil)
	if err != nil {
		t.Fatalf("consumeStreaming() error = %v", err)
	}
	if resp.Text != "Hi there" {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, "Hi there")
	}
}

func TestHTTPGeneratorPostsSamplingOptions(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Welcome to the show."}`))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL)
	resp, err := g.StreamResponse(context.Background(), Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Sampling: DefaultSampling(),
	}, nil)
	if err != nil {
		t.Fatalf("StreamResponse() error = %v", err)
	}
	if resp.Text != "Welcome to the show." {
		t.Fatalf("resp.Text = %q", resp.Text)
	}
	for _, want := range []string{`"num_predict":150`, `"num_ctx":2048`, `"repeat_penalty":1.1`, `"role":"user"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("request body %s missing %s", body, want)
		}
	}
}

func TestHTTPGeneratorClassifiesUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPGenerator(srv.URL).StreamResponse(context.Background(), Request{}, nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("StreamResponse() error = %v, want ErrModelUnavailable", err)
	}

	srv.Close()
	_, err = NewHTTPGenerator(srv.URL).StreamResponse(context.Background(), Request{}, nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("StreamResponse() on closed server error = %v, want ErrModelUnavailable", err)
	}
}

func TestHTTPGeneratorKeepsPlainTextWhitespace(t *testing.T) {
	g := NewHTTPGenerator("http://example.test")
	stream := strings.NewReader(strings.Join([]string{
		"Hello",
		" there,",
		"data:  my friend.",
		"",
		"data: [DONE]",
	}, "\n"))

	var deltas []string
	resp, err := g.consumeStreaming(context.Background(), stream, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("consumeStreaming() error = %v", err)
	}
	if want := "Hello there, my friend."; resp.Text != want {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, want)
	}
	if want := []string{"Hello", " there,", " my friend."}; strings.Join(deltas, "|") != strings.Join(want, "|") {
		t.Fatalf("deltas = %q, want %q", deltas, want)
	}
}
