package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/speech"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"service":         "podcast-host",
		"llm_provider":    s.cfg.LLMProvider,
		"memory_backend":  s.cfg.MemoryBackend,
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"connected": false,
			"model":     s.cfg.OllamaModel,
			"error":     "status check not supported by " + s.cfg.LLMProvider,
		})
		return
	}
	respondJSON(w, http.StatusOK, s.status.Status(r.Context()))
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if s.topics == nil {
		respondJSON(w, http.StatusOK, map[string]any{"topics": []types.Topic{}})
		return
	}
	list, err := s.topics.List(r.Context())
	if err != nil {
		logger.Errorf(r.Context(), "failed to load topics: %v", err)
		respondJSON(w, http.StatusOK, map[string]any{"topics": []types.Topic{}, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"topics": list})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "memory not configured")
		return
	}
	profile := strings.TrimSpace(r.URL.Query().Get("profile"))
	if profile == "" {
		profile = s.cfg.MemoryProfileID
	}
	rec, err := s.memory.Record(r.Context(), profile)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "persistence_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type ttsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "speech synthesis not configured")
		return
	}
	var req ttsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "no text provided")
		return
	}
	text, err := speech.Prepare(req.Text)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "text cleaned to empty string")
		return
	}

	audio, err := s.speech.Synthesize(r.Context(), text)
	switch {
	case errors.Is(err, speech.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "tts_unavailable", err.Error())
		return
	case err != nil:
		logger.Errorf(r.Context(), "tts generation failed: %v", err)
		respondError(w, http.StatusInternalServerError, "tts_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `inline; filename="response.wav"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"active":   s.sessions.ActiveCount(),
		"sessions": s.sessions.List(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}
