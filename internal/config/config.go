package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the podcast host service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool
	AllowedOrigins []string

	LLMProvider     string
	OllamaURL       string
	OllamaModel     string
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	LLMHTTPURL      string
	NumPredict      int
	NumCtx          int
	Temperature     float64
	TopK            int
	TopP            float64
	RepeatPenalty   float64
	LLMStallTimeout time.Duration

	HistoryWindow    int
	MemoryBackend    string
	MemoryFile       string
	MemorySQLitePath string
	DatabaseURL      string
	RedisURL         string
	MemoryProfileID  string

	TopicsFile            string
	PhaseInstructionsFile string

	TTSProvider string
	TTSURL      string
	TTSSpeaker  string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "podcast"),
		AllowAnyOrigin:           false,
		AllowedOrigins:           listFromEnv("APP_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		LLMProvider:              strings.ToLower(envOrDefault("LLM_PROVIDER", "ollama")),
		OllamaURL:                envOrDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:              envOrDefault("OLLAMA_MODEL", "llama3"),
		OpenAIBaseURL:            envOrDefault("OPENAI_BASE_URL", "http://localhost:11434/v1"),
		// Ollama's OpenAI-compatible endpoint accepts any non-empty key.
		OpenAIAPIKey:             envOrDefault("OPENAI_API_KEY", "ollama"),
		LLMHTTPURL:               stringsTrimSpace("LLM_HTTP_URL"),
		NumPredict:               150,
		NumCtx:                   2048,
		Temperature:              0.7,
		TopK:                     40,
		TopP:                     0.9,
		RepeatPenalty:            1.1,
		LLMStallTimeout:          30 * time.Second,
		HistoryWindow:            20,
		MemoryBackend:            strings.ToLower(envOrDefault("MEMORY_BACKEND", "file")),
		MemoryFile:               envOrDefault("MEMORY_FILE", "data/memory.json"),
		MemorySQLitePath:         envOrDefault("MEMORY_SQLITE_PATH", "data/memory.db"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		RedisURL:                 envOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		MemoryProfileID:          envOrDefault("MEMORY_PROFILE_ID", "default"),
		TopicsFile:               envOrDefault("TOPICS_FILE", "data/topics.json"),
		PhaseInstructionsFile:    stringsTrimSpace("PHASE_INSTRUCTIONS_FILE"),
		TTSProvider:              strings.ToLower(envOrDefault("TTS_PROVIDER", "mock")),
		TTSURL:                   stringsTrimSpace("TTS_URL"),
		TTSSpeaker:               envOrDefault("TTS_SPEAKER", "p273"),
		LogLevel:                 envOrDefault("LOG_LEVEL", "info"),
		LogFormat:                envOrDefault("LOG_FORMAT", "text"),
		LogFile:                  stringsTrimSpace("LOG_FILE"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMStallTimeout, err = durationFromEnv("LLM_STALL_TIMEOUT", cfg.LLMStallTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"LLM_NUM_PREDICT", &cfg.NumPredict},
		{"LLM_NUM_CTX", &cfg.NumCtx},
		{"LLM_TOP_K", &cfg.TopK},
		{"HISTORY_WINDOW", &cfg.HistoryWindow},
	} {
		if *f.dst, err = intFromEnv(f.key, *f.dst); err != nil {
			return Config{}, err
		}
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"LLM_TEMPERATURE", &cfg.Temperature},
		{"LLM_TOP_P", &cfg.TopP},
		{"LLM_REPEAT_PENALTY", &cfg.RepeatPenalty},
	} {
		if *f.dst, err = floatFromEnv(f.key, *f.dst); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.LLMStallTimeout <= 0 {
		return fmt.Errorf("LLM_STALL_TIMEOUT must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive")
	}
	if cfg.NumPredict <= 0 || cfg.NumCtx <= 0 {
		return fmt.Errorf("LLM_NUM_PREDICT and LLM_NUM_CTX must be positive")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		return fmt.Errorf("LLM_TOP_P must be within (0, 1]")
	}
	switch cfg.LLMProvider {
	case "ollama", "openai", "mock":
	case "http":
		if cfg.LLMHTTPURL == "" {
			return fmt.Errorf("LLM_HTTP_URL is required when LLM_PROVIDER=http")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER %q: expected ollama|openai|http|mock", cfg.LLMProvider)
	}
	switch cfg.MemoryBackend {
	case "", "file", "sqlite", "redis", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when MEMORY_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("MEMORY_BACKEND %q: expected file|sqlite|postgres|redis|memory", cfg.MemoryBackend)
	}
	switch cfg.TTSProvider {
	case "mock":
	case "http":
		if cfg.TTSURL == "" {
			return fmt.Errorf("TTS_URL is required when TTS_PROVIDER=http")
		}
	default:
		return fmt.Errorf("TTS_PROVIDER %q: expected mock|http", cfg.TTSProvider)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func listFromEnv(key string, fallback []string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
