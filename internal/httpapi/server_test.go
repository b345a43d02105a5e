package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/config"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/conversation"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/llm"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/memory"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/observability"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/relay"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/session"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/speech"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/topics"
)

func testMetrics(name string) *observability.Metrics {
	return observability.NewMetrics("test_httpapi_" + name + "_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
}

type testServer struct {
	*httptest.Server
	sessions *session.Manager
	store    *memory.InMemoryStore
}

func newTestServer(t *testing.T, name string) *testServer {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		LLMProvider:              "mock",
		MemoryBackend:            "memory",
		MemoryProfileID:          "default",
		AllowedOrigins:           []string{"http://localhost:3000"},
	}
	metrics := testMetrics(name)
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	store := memory.NewInMemoryStore()
	mem := memory.NewManager(store, 20)
	gen := llm.NewMockGenerator()
	ctrl := conversation.NewController(relay.New(gen, time.Second, metrics), mem, conversation.Config{Sampling: llm.DefaultSampling()}, metrics, sessions)

	srv := New(cfg, sessions, ctrl, metrics,
		WithStatus(gen),
		WithTopics(topics.NewFileSource(filepath.Join(t.TempDir(), "topics.json"))),
		WithMemory(mem),
		WithSpeech(speech.MockSynthesizer{}),
	)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, sessions: sessions, store: store}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return res.StatusCode
}

func TestRESTEndpoints(t *testing.T) {
	ts := newTestServer(t, "rest")

	var health map[string]any
	if code := getJSON(t, ts.URL+"/api/health", &health); code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", code, http.StatusOK)
	}
	if health["status"] != "ok" {
		t.Fatalf("health = %+v", health)
	}

	var status map[string]any
	getJSON(t, ts.URL+"/api/ollama/status", &status)
	if status["connected"] != true || status["model"] != "mock" {
		t.Fatalf("ollama status = %+v, want connected mock", status)
	}

	var list struct {
		Topics []map[string]any `json:"topics"`
	}
	getJSON(t, ts.URL+"/api/topics", &list)
	if list.Topics == nil || len(list.Topics) != 0 {
		t.Fatalf("topics = %#v, want empty list", list.Topics)
	}

	var rec map[string]any
	if code := getJSON(t, ts.URL+"/api/memory", &rec); code != http.StatusOK {
		t.Fatalf("memory status = %d", code)
	}
	if _, ok := rec["topics_discussed"]; !ok {
		t.Fatalf("memory payload missing topics_discussed: %+v", rec)
	}

	var perf map[string]any
	getJSON(t, ts.URL+"/api/perf/latency", &perf)
	if _, ok := perf["stages"]; !ok {
		t.Fatalf("perf payload missing stages: %+v", perf)
	}

	res, err := http.Post(ts.URL+"/api/sessions/nope/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end session error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("end unknown session status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestTTSReturnsWAV(t *testing.T) {
	ts := newTestServer(t, "tts")

	res, err := http.Post(ts.URL+"/api/tts", "application/json", strings.NewReader(`{"text":"**Hello** there. Second one! Third is dropped."}`))
	if err != nil {
		t.Fatalf("POST /api/tts error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tts status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if got := res.Header.Get("Content-Type"); got != "audio/wav" {
		t.Fatalf("Content-Type = %q, want audio/wav", got)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(res.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.HasPrefix(body.Bytes(), []byte("RIFF")) {
		t.Fatalf("tts body is not a WAV payload")
	}

	for _, payload := range []string{`{"text":"   "}`, ``, `{"text":"` + "```code```" + `"}`} {
		res, err := http.Post(ts.URL+"/api/tts", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("POST /api/tts error = %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("tts(%q) status = %d, want %d", payload, res.StatusCode, http.StatusBadRequest)
		}
	}
}

func dial(t *testing.T, ts *testServer, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/chat", header)
}

func readUntil(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read waiting for %s: %v", wantType, err)
		}
		if msg["type"] == wantType {
			return msg
		}
	}
}

func TestChatWebSocketSession(t *testing.T) {
	ts := newTestServer(t, "ws")

	conn, _, err := dial(t, ts, "http://localhost:3000")
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","text":"hi"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readUntil(t, conn, "error")
	if ev["code"] != "protocol_violation" {
		t.Fatalf("error before topic = %+v, want protocol_violation", ev)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"start_topic","topic":"Deep sea vents"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	done := readUntil(t, conn, "complete")
	if done["state"] != "EXPLAIN" {
		t.Fatalf("complete state = %v, want EXPLAIN", done["state"])
	}
	if content, _ := done["content"].(string); content == "" {
		t.Fatalf("complete content is empty: %+v", done)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev = readUntil(t, conn, "error")
	if ev["code"] != "protocol_violation" {
		t.Fatalf("invalid frame error = %+v, want protocol_violation", ev)
	}

	var sessions struct {
		Active int `json:"active"`
	}
	getJSON(t, ts.URL+"/api/sessions", &sessions)
	if sessions.Active != 1 {
		t.Fatalf("active sessions = %d, want 1", sessions.Active)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	closed := readUntil(t, conn, "system_event")
	if closed["code"] != "session_closed" {
		t.Fatalf("system_event = %+v, want session_closed", closed)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ts.sessions.ActiveCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session still registered after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec, err := ts.store.Load(context.Background(), "default")
	if err != nil {
		t.Fatalf("load memory: %v", err)
	}
	if rec.SessionCount != 1 || len(rec.TopicsDiscussed) != 1 {
		t.Fatalf("memory = %+v, want one session and one topic", rec)
	}
}

func TestChatWebSocketRejectsForeignOrigin(t *testing.T) {
	ts := newTestServer(t, "origin")

	_, res, err := dial(t, ts, "https://evil.example")
	if err == nil {
		t.Fatalf("dial from foreign origin succeeded")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin response = %v, want 403", res)
	}
}

func TestEndSessionCancelsConnection(t *testing.T) {
	ts := newTestServer(t, "end")

	conn, _, err := dial(t, ts, "")
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	var list struct {
		Sessions []session.Session `json:"sessions"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(list.Sessions) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never registered")
		}
		getJSON(t, ts.URL+"/api/sessions", &list)
	}

	res, err := http.Post(ts.URL+"/api/sessions/"+list.Sessions[0].ID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end session error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read after end = %v, want normal closure", err)
			}
			return
		}
	}
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res.StatusCode
}

func TestChatEndpointRunsOneExchange(t *testing.T) {
	ts := newTestServer(t, "chat")

	var out struct {
		Reply   string `json:"reply"`
		State   string `json:"state"`
		Turn    int    `json:"turn"`
		History []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Phase   string `json:"phase"`
		} `json:"history"`
	}
	body := `{"message":"I think tea is great.","topic":"Tea","state":"ASK",
		"history":[{"role":"assistant","content":"What do you drink in the morning?"}]}`
	if code := postJSON(t, ts.URL+"/api/chat", body, &out); code != http.StatusOK {
		t.Fatalf("POST /api/chat status = %d, want %d", code, http.StatusOK)
	}
	if !strings.Contains(out.Reply, "I think tea is great.") {
		t.Fatalf("reply = %q, want it to echo the message", out.Reply)
	}
	if out.State != "EXPAND" || out.Turn != 2 {
		t.Fatalf("state = %q, turn = %d; want EXPAND, 2", out.State, out.Turn)
	}
	if len(out.History) != 3 || out.History[1].Role != "user" || out.History[1].Phase != "REACT" {
		t.Fatalf("history = %+v", out.History)
	}

	rec, err := ts.store.Load(context.Background(), "default")
	if err != nil {
		t.Fatalf("load memory: %v", err)
	}
	if len(rec.Opinions) != 1 || rec.Opinions[0].Opinion != "tea is great" || rec.SessionCount != 0 {
		t.Fatalf("memory = %+v, want one opinion and no session counted", rec)
	}
}

func TestChatEndpointRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, "chatbad")

	for _, body := range []string{
		``,
		`{"message":"hi","state":"OUTRO"}`,
		`{"message":"hi","history":[{"role":"narrator","content":"x"}]}`,
	} {
		var out map[string]any
		if code := postJSON(t, ts.URL+"/api/chat", body, &out); code != http.StatusBadRequest {
			t.Fatalf("POST /api/chat %q status = %d, want %d (%v)", body, code, http.StatusBadRequest, out)
		}
	}
}
