package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// MockGenerator provides deterministic local replies when no model is
// configured. It streams word by word so downstream segmentation is exercised.
type MockGenerator struct {
	Delay time.Duration
}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	text := buildMockReply(req)
	var out strings.Builder
	for i, word := range strings.Fields(text) {
		if i > 0 {
			word = " " + word
		}
		if g.Delay > 0 {
			t := time.NewTimer(g.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return Response{}, ctx.Err()
			case <-t.C:
			}
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		default:
		}
		out.WriteString(word)
		if onDelta != nil {
			if err := onDelta(word); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{Text: out.String()}, nil
}

func (g *MockGenerator) Status(context.Context) Status {
	return Status{Connected: true, Model: "mock", ModelPresent: true, Models: []string{"mock"}}
}

func buildMockReply(req Request) string {
	var last types.Message
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != types.RoleSystem || i == len(req.Messages)-1 {
			last = req.Messages[i]
			break
		}
	}
	input := strings.TrimSpace(last.Content)
	if input == "" {
		return "That is a great point. What do you think about it?"
	}
	if r := []rune(input); len(r) > 80 {
		input = string(r[:80])
	}
	return fmt.Sprintf("Interesting, you said %q. Tell me more about that?", input)
}
