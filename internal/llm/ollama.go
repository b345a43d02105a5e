package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/reliability"
)

// OllamaGenerator streams chat completions from a local Ollama server.
type OllamaGenerator struct {
	client *api.Client
	model  string
}

func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	return &OllamaGenerator{
		client: api.NewClient(u, http.DefaultClient),
		model:  strings.TrimSpace(model),
	}, nil
}

func (g *OllamaGenerator) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	msgs := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}
	stream := true
	chatReq := &api.ChatRequest{
		Model:    g.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  ollamaOptions(req.Sampling),
	}

	var out strings.Builder
	err := g.client.Chat(ctx, chatReq, func(res api.ChatResponse) error {
		delta := res.Message.Content
		if delta == "" {
			return nil
		}
		out.WriteString(delta)
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	})
	if err != nil {
		return Response{}, classifyOllamaError(err)
	}
	return Response{Text: out.String()}, nil
}

// Status reports whether the server answers and whether the model is pulled.
func (g *OllamaGenerator) Status(ctx context.Context) Status {
	st := Status{Model: g.model}
	list, err := g.client.List(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Connected = true
	for _, m := range list.Models {
		st.Models = append(st.Models, m.Name)
	}
	st.ModelPresent = modelPresent(g.model, st.Models)
	return st
}

// Ping checks that the server is reachable.
func (g *OllamaGenerator) Ping(ctx context.Context) error {
	if err := g.client.Heartbeat(ctx); err != nil {
		return classifyOllamaError(err)
	}
	return nil
}

func ollamaOptions(s SamplingConfig) map[string]any {
	return map[string]any{
		"num_predict":    s.NumPredict,
		"num_ctx":        s.NumCtx,
		"temperature":    s.Temperature,
		"top_k":          s.TopK,
		"top_p":          s.TopP,
		"repeat_penalty": s.RepeatPenalty,
	}
}

func classifyOllamaError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusNotFound || reliability.IsRetryableHTTPStatus(statusErr.StatusCode) {
			return fmt.Errorf("%w: ollama status %d: %s", ErrModelUnavailable, statusErr.StatusCode, statusErr.ErrorMessage)
		}
		return fmt.Errorf("ollama status %d: %s", statusErr.StatusCode, statusErr.ErrorMessage)
	}
	if reliability.IsUnreachable(err) {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return fmt.Errorf("ollama chat: %w", err)
}
