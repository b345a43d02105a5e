package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/reliability"
)

const DefaultSampleRate = 22050

var (
	ErrEmptyText   = errors.New("no speakable text")
	ErrUnavailable = errors.New("speech engine unavailable")
)

// Synthesizer renders text to a WAV payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Config struct {
	Provider string
	URL      string
	Speaker  string
}

func NewSynthesizer(cfg Config) (Synthesizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "mock":
		return &MockSynthesizer{}, nil
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("tts url is required for the http provider")
		}
		return NewHTTPSynthesizer(cfg.URL, cfg.Speaker), nil
	default:
		return nil, fmt.Errorf("unsupported tts provider %q", cfg.Provider)
	}
}

// Prepare sanitises a reply and keeps its first two sentences, which is all
// the listener hears before the next turn.
func Prepare(text string) (string, error) {
	clean := FirstSentences(Sanitize(text), 2)
	if clean == "" {
		return "", ErrEmptyText
	}
	return clean, nil
}

// HTTPSynthesizer calls a Coqui-style TTS server: GET {url}/api/tts?text=..&speaker_id=..
type HTTPSynthesizer struct {
	baseURL string
	speaker string
	client  *http.Client
}

func NewHTTPSynthesizer(baseURL, speaker string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		speaker: strings.TrimSpace(speaker),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	q := url.Values{}
	q.Set("text", text)
	if s.speaker != "" {
		q.Set("speaker_id", s.speaker)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	res, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if reliability.IsUnreachable(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("tts http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	audio, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read tts body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts returned an empty body")
	}
	return audio, nil
}

// MockSynthesizer returns silence sized to the text, roughly at speaking pace.
type MockSynthesizer struct{}

func (MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, ErrEmptyText
	}
	// ~2.5 words per second of 16-bit samples.
	samples := words * DefaultSampleRate * 2 / 5
	return EncodeWAV(make([]byte, samples*2), DefaultSampleRate)
}
