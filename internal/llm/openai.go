package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/reliability"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint,
// including Ollama's /v1 surface.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(baseURL, apiKey, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if u := strings.TrimSpace(baseURL); u != "" {
		cfg.BaseURL = u
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  strings.TrimSpace(model),
	}
}

func (g *OpenAIGenerator) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:            g.model,
		Messages:         msgs,
		MaxTokens:        req.Sampling.NumPredict,
		Temperature:      float32(req.Sampling.Temperature),
		TopP:             float32(req.Sampling.TopP),
		FrequencyPenalty: float32(req.Sampling.RepeatPenalty - 1),
		Stream:           true,
	})
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, classifyOpenAIError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{Text: out.String()}, nil
}

func (g *OpenAIGenerator) Status(ctx context.Context) Status {
	st := Status{Model: g.model}
	list, err := g.client.ListModels(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Connected = true
	for _, m := range list.Models {
		st.Models = append(st.Models, m.ID)
	}
	st.ModelPresent = modelPresent(g.model, st.Models)
	return st
}

func classifyOpenAIError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusNotFound || reliability.IsRetryableHTTPStatus(apiErr.HTTPStatusCode) {
			return fmt.Errorf("%w: %v", ErrModelUnavailable, apiErr)
		}
		return fmt.Errorf("openai chat: %w", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusNotFound || reliability.IsRetryableHTTPStatus(reqErr.HTTPStatusCode) {
			return fmt.Errorf("%w: %v", ErrModelUnavailable, reqErr)
		}
	}
	if reliability.IsUnreachable(err) {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return fmt.Errorf("openai chat: %w", err)
}
