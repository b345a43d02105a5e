// Package app wires configuration into a runnable podcast host.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/config"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/conversation"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/dialogue"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/httpapi"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/llm"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/memory"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/observability"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/relay"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/reliability"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/session"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/speech"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/topics"
)

const warmupAttempts = 3

type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Sessions   *session.Manager
	Controller *conversation.Controller
	Generator  llm.Generator
	Memory     *memory.Manager
	Topics     *topics.FileSource
	Metrics    *observability.Metrics

	// Cleanup should be called on shutdown to release the memory store.
	Cleanup func() error
}

// OpenMemory opens the configured store behind a Manager. The CLI uses it on
// its own for inspection commands.
func OpenMemory(ctx context.Context, cfg config.Config) (*memory.Manager, error) {
	store, err := memory.NewStore(ctx, memory.StoreConfig{
		Backend:     cfg.MemoryBackend,
		FilePath:    cfg.MemoryFile,
		SQLitePath:  cfg.MemorySQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}
	return memory.NewManager(store, cfg.HistoryWindow), nil
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	instructions, err := dialogue.LoadInstructions(cfg.PhaseInstructionsFile)
	if err != nil {
		return nil, err
	}

	gen, err := llm.NewGenerator(llm.Config{
		Provider:      cfg.LLMProvider,
		OllamaURL:     cfg.OllamaURL,
		Model:         cfg.OllamaModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		HTTPURL:       cfg.LLMHTTPURL,
	})
	if err != nil {
		return nil, fmt.Errorf("llm init failed: %w", err)
	}

	synth, err := speech.NewSynthesizer(speech.Config{
		Provider: cfg.TTSProvider,
		URL:      cfg.TTSURL,
		Speaker:  cfg.TTSSpeaker,
	})
	if err != nil {
		return nil, fmt.Errorf("tts init failed: %w", err)
	}

	mem, err := OpenMemory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
		logger.Infof(logger.WithField(ctx, "session_id", s.ID), "session expired after inactivity")
	})

	controller := conversation.NewController(
		relay.New(gen, cfg.LLMStallTimeout, metrics),
		mem,
		conversation.Config{
			Instructions: instructions,
			Sampling: llm.SamplingConfig{
				NumPredict:    cfg.NumPredict,
				NumCtx:        cfg.NumCtx,
				Temperature:   cfg.Temperature,
				TopK:          cfg.TopK,
				TopP:          cfg.TopP,
				RepeatPenalty: cfg.RepeatPenalty,
			},
		},
		metrics,
		sessions,
	)

	topicSource := topics.NewFileSource(cfg.TopicsFile)
	opts := []httpapi.Option{
		httpapi.WithTopics(topicSource),
		httpapi.WithMemory(mem),
		httpapi.WithSpeech(synth),
	}
	if checker, ok := gen.(llm.StatusChecker); ok {
		opts = append(opts, httpapi.WithStatus(checker))
	}
	api := httpapi.New(cfg, sessions, controller, metrics, opts...)

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Sessions:   sessions,
		Controller: controller,
		Generator:  gen,
		Memory:     mem,
		Topics:     topicSource,
		Metrics:    metrics,
		Cleanup:    mem.Close,
	}, nil
}

// Warmup probes the model backend so the first listener does not pay for a
// cold start. Backends without a probe are assumed ready.
func (b *BuildResult) Warmup(ctx context.Context) error {
	pinger, ok := b.Generator.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	attempt := 0
	err := reliability.Retry(ctx, warmupAttempts, 500*time.Millisecond, 4*time.Second, func(ctx context.Context) error {
		attempt++
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := pinger.Ping(probeCtx)
		if err != nil {
			logger.Debugf(ctx, "model warmup attempt %d: %v", attempt, err)
		}
		return err
	})
	if err != nil {
		return errors.Join(llm.ErrModelUnavailable, err)
	}
	return nil
}
