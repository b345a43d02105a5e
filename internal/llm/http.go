package llm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/reliability"
)

// HTTPGenerator posts the request to a generic streaming HTTP endpoint. The
// endpoint may answer with NDJSON, server-sent events or a single JSON body.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (g *HTTPGenerator) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	payload, err := sonic.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		if reliability.IsUnreachable(err) {
			return Response{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		err := fmt.Errorf("llm http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		if res.StatusCode == http.StatusNotFound || reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return Response{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		return Response{}, err
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		return g.consumeStreaming(ctx, res.Body, onDelta)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	text := strings.TrimSpace(string(body))
	if err := sonic.Unmarshal(body, &obj); err == nil {
		text = extractText(obj)
	}
	if text != "" && onDelta != nil {
		if err := onDelta(text); err != nil {
			return Response{}, err
		}
	}
	return Response{Text: text}, nil
}

func (g *HTTPGenerator) consumeStreaming(ctx context.Context, body io.Reader, onDelta DeltaHandler) (Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		raw := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if isSSEControl(trimmed) {
			continue
		}
		if strings.HasPrefix(trimmed, "data:") {
			// SSE drops one space after the field name; the rest is payload.
			raw = strings.TrimPrefix(strings.TrimPrefix(strings.TrimLeft(raw, " \t"), "data:"), " ")
			trimmed = strings.TrimSpace(raw)
		}
		if trimmed == "[DONE]" {
			break
		}

		// Plain-text fragments keep their whitespace; it separates words
		// across chunks. Trimming only decides how to read the line.
		delta := raw
		var obj map[string]any
		if err := sonic.UnmarshalString(trimmed, &obj); err == nil {
			delta = extractText(obj)
			if done, _ := obj["done"].(bool); done && delta == "" {
				break
			}
		}

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
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("stream read: %w", err)
	}

	return Response{Text: out.String()}, nil
}

// isSSEControl reports comment lines and SSE fields other than data.
func isSSEControl(line string) bool {
	if strings.HasPrefix(line, ":") {
		return true
	}
	for _, field := range []string{"event:", "id:", "retry:"} {
		if strings.HasPrefix(line, field) {
			return true
		}
	}
	return false
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "delta", "response", "output"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	// Ollama chat chunks nest the fragment under message.content.
	if msg, ok := obj["message"].(map[string]any); ok {
		if s, ok := msg["content"].(string); ok {
			return s
		}
	}
	if s, ok := obj["message"].(string); ok {
		return s
	}
	return ""
}
