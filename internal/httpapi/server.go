package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/config"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/conversation"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/llm"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/memory"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/observability"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/session"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/speech"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/topics"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// Conversation runs one session over a pair of channels, closing neither,
// and answers one-shot chat requests.
type Conversation interface {
	RunConnection(ctx context.Context, sess *types.Session, inbound <-chan any, outbound chan<- any) error
	Chat(ctx context.Context, req conversation.ChatRequest) (conversation.ChatResult, error)
}

type Option func(*Server)

func WithStatus(c llm.StatusChecker) Option { return func(s *Server) { s.status = c } }

func WithTopics(src topics.Source) Option { return func(s *Server) { s.topics = src } }

func WithMemory(m *memory.Manager) Option { return func(s *Server) { s.memory = m } }

func WithSpeech(syn speech.Synthesizer) Option { return func(s *Server) { s.speech = syn } }

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	conversation Conversation
	metrics      *observability.Metrics
	status       llm.StatusChecker
	topics       topics.Source
	memory       *memory.Manager
	speech       speech.Synthesizer
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, conversation Conversation, metrics *observability.Metrics, opts ...Option) *Server {
	s := &Server{
		cfg:          cfg,
		sessions:     sessions,
		conversation: conversation,
		metrics:      metrics,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkOrigin admits the configured frontend origins and same-host pages.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients often omit Origin.
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ollama/status", s.handleModelStatus)
	r.Get("/api/topics", s.handleTopics)
	r.Get("/api/memory", s.handleMemory)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/tts", s.handleTTS)
	r.Get("/api/perf/latency", s.handlePerfLatency)
	r.Get("/api/sessions", s.handleListSessions)
	r.Post("/api/sessions/{id}/end", s.handleEndSession)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/ws/chat", s.handleChatWS)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errEmptyBody
	}
	return sonic.Unmarshal(raw, out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	payload, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode response","code":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
