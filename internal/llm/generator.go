// Package llm streams host replies from a language model backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// ErrModelUnavailable marks failures where the backend could not be reached or
// does not serve the configured model.
var ErrModelUnavailable = errors.New("model unavailable")

// SamplingConfig carries the decoding options sent with every request.
type SamplingConfig struct {
	NumPredict    int     `json:"num_predict"`
	NumCtx        int     `json:"num_ctx"`
	Temperature   float64 `json:"temperature"`
	TopK          int     `json:"top_k"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

// DefaultSampling mirrors the short, conversational replies the host aims for.
func DefaultSampling() SamplingConfig {
	return SamplingConfig{
		NumPredict:    150,
		NumCtx:        2048,
		Temperature:   0.7,
		TopK:          40,
		TopP:          0.9,
		RepeatPenalty: 1.1,
	}
}

// Request is the normalized request sent to a backend.
type Request struct {
	Messages []types.Message `json:"messages"`
	Sampling SamplingConfig  `json:"options"`
}

// Response is the final response after streaming deltas.
type Response struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// Generator produces a reply as an ordered stream of fragments. Implementations
// must stop promptly when ctx is done and must not call onDelta after returning.
type Generator interface {
	StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
}

// Status describes backend reachability for the status endpoint.
type Status struct {
	Connected    bool     `json:"connected"`
	Model        string   `json:"model"`
	ModelPresent bool     `json:"model_available"`
	Models       []string `json:"models,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// StatusChecker is implemented by backends that can report their health.
type StatusChecker interface {
	Status(ctx context.Context) Status
}

// Config controls generator construction.
type Config struct {
	Provider      string
	OllamaURL     string
	Model         string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	HTTPURL       string
}

func NewGenerator(cfg Config) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "ollama"
	}

	switch provider {
	case "ollama":
		return NewOllamaGenerator(cfg.OllamaURL, cfg.Model)
	case "openai":
		return NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Model), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("llm HTTP url is required for http provider")
		}
		return NewHTTPGenerator(cfg.HTTPURL), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func modelPresent(want string, have []string) bool {
	want = strings.TrimSpace(want)
	for _, name := range have {
		if name == want || strings.TrimSuffix(name, ":latest") == want {
			return true
		}
	}
	return false
}
