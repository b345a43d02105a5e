package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/conversation"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/llm"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/protocol"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/relay"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

type chatRequest struct {
	Message      string                 `json:"message"`
	Topic        string                 `json:"topic"`
	TopicContext string                 `json:"topic_context"`
	State        string                 `json:"state"`
	Profile      string                 `json:"profile"`
	History      []protocol.HistoryItem `json:"history"`
}

type chatResponse struct {
	Reply   string       `json:"reply"`
	History []types.Turn `json:"history"`
	State   string       `json:"state"`
	Turn    int          `json:"turn"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	history := make([]types.Turn, 0, len(req.History))
	for _, item := range req.History {
		role := types.Role(strings.ToLower(strings.TrimSpace(item.Role)))
		switch role {
		case types.RoleUser, types.RoleAssistant, types.RoleSystem:
		default:
			respondError(w, http.StatusBadRequest, "invalid_request", "unknown history role "+item.Role)
			return
		}
		history = append(history, types.Turn{Role: role, Content: item.Content})
	}
	profile := strings.TrimSpace(req.Profile)
	if profile == "" {
		profile = s.cfg.MemoryProfileID
	}

	res, err := s.conversation.Chat(r.Context(), conversation.ChatRequest{
		ProfileID:    profile,
		Message:      req.Message,
		Topic:        req.Topic,
		TopicContext: req.TopicContext,
		State:        req.State,
		History:      history,
	})
	switch {
	case errors.Is(err, conversation.ErrProtocolViolation):
		respondError(w, http.StatusBadRequest, protocol.CodeProtocolViolation, err.Error())
		return
	case errors.Is(err, llm.ErrModelUnavailable):
		respondError(w, http.StatusServiceUnavailable, protocol.CodeModelUnavailable, err.Error())
		return
	case errors.Is(err, relay.ErrGenerationTimeout):
		respondError(w, http.StatusGatewayTimeout, protocol.CodeGenerationTimeout, err.Error())
		return
	case err != nil:
		logger.Errorf(r.Context(), "chat failed: %v", err)
		respondError(w, http.StatusInternalServerError, protocol.CodeGenerationFailed, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{
		Reply:   res.Reply,
		History: res.History,
		State:   res.State.String(),
		Turn:    res.Turn,
	})
}
