// Package relay drives one generation and turns its token stream into token
// and sentence events for the client.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/llm"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/observability"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/segment"
)

var (
	// ErrGenerationTimeout is returned when the model stops producing tokens
	// for longer than the stall timeout.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrCancelled is returned when the caller cancels an in-flight generation.
	ErrCancelled = errors.New("generation cancelled")
)

// Kind distinguishes the two event kinds a generation produces.
type Kind string

const (
	KindToken    Kind = "token"
	KindSentence Kind = "sentence"
)

// Event is one ordered output of a generation. Final marks the trailing
// fragment flushed at the end of a reply when it had no terminal punctuation.
type Event struct {
	Kind    Kind
	Content string
	Final   bool
}

// Result is the full reply of a successful generation.
type Result struct {
	Text string
}

// EmitFunc receives events in order. Returning an error aborts the generation.
type EmitFunc func(Event) error

type Relay struct {
	gen     llm.Generator
	stall   time.Duration
	metrics *observability.Metrics
}

func New(gen llm.Generator, stallTimeout time.Duration, metrics *observability.Metrics) *Relay {
	return &Relay{gen: gen, stall: stallTimeout, metrics: metrics}
}

// Run streams one reply. Every token is emitted before any sentence it
// completes. The stall watchdog restarts on every token, so a slow but steady
// model is never cut off.
func (r *Relay) Run(ctx context.Context, req llm.Request, emit EmitFunc) (Result, error) {
	if r == nil || r.gen == nil {
		return Result{}, fmt.Errorf("%w: no generator configured", llm.ErrModelUnavailable)
	}
	genCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var watchdog *stallWatchdog
	if r.stall > 0 {
		watchdog = newStallWatchdog(r.stall, func() { cancel(ErrGenerationTimeout) })
	}

	started := time.Now()
	var (
		buf          strings.Builder
		cur          segment.Cursor
		sawToken     bool
		sawSentence  bool
		emitSentence = func(s string, final bool) error {
			if !sawSentence {
				sawSentence = true
				r.metrics.ObserveFirstSentence(time.Since(started))
			}
			r.metrics.CountSentence()
			return emit(Event{Kind: KindSentence, Content: s, Final: final})
		}
	)

	_, err := r.gen.StreamResponse(genCtx, req, func(delta string) error {
		if delta == "" {
			return nil
		}
		if err := genCtx.Err(); err != nil {
			return err
		}
		watchdog.Touch()
		if !sawToken {
			sawToken = true
			r.metrics.ObserveFirstToken(time.Since(started))
		}
		buf.WriteString(delta)
		if err := emit(Event{Kind: KindToken, Content: delta}); err != nil {
			return err
		}
		var sentences []string
		sentences, cur = segment.Scan(buf.String(), cur)
		for _, s := range sentences {
			if err := emitSentence(s, false); err != nil {
				return err
			}
		}
		return nil
	})

	watchdog.Stop()

	// A generator may swallow the cancellation and return cleanly; the cause
	// still decides the outcome.
	if genCtx.Err() != nil {
		switch {
		case errors.Is(context.Cause(genCtx), ErrGenerationTimeout):
			r.metrics.ObserveGeneration("timeout", time.Since(started))
			return Result{}, fmt.Errorf("%w: no token for %s", ErrGenerationTimeout, r.stall)
		case ctx.Err() != nil:
			r.metrics.ObserveGeneration("cancelled", time.Since(started))
			return Result{}, ErrCancelled
		}
	}
	if err != nil {
		r.metrics.ObserveGeneration("failed", time.Since(started))
		return Result{}, err
	}

	text := buf.String()
	if tail := segment.Tail(text, cur); segment.Speakable(tail) {
		if err := emitSentence(tail, true); err != nil {
			r.metrics.ObserveGeneration("failed", time.Since(started))
			return Result{}, err
		}
	}
	r.metrics.ObserveGeneration("completed", time.Since(started))
	return Result{Text: text}, nil
}

// stallWatchdog fires once when Touch has not been called for the timeout.
type stallWatchdog struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	stopped bool
}

func newStallWatchdog(timeout time.Duration, fire func()) *stallWatchdog {
	w := &stallWatchdog{timeout: timeout}
	w.timer = time.AfterFunc(timeout, fire)
	return w
}

func (w *stallWatchdog) Touch() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	// Reset on a fired timer re-arms it, so the stall check stays live across
	// the whole reply.
	w.timer.Reset(w.timeout)
}

func (w *stallWatchdog) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}
