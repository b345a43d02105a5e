// Package conversation runs one podcast session per connection: it validates
// client intents, drives the dialogue phase, and relays one generation at a
// time to the client.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/dialogue"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/llm"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/memory"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/observability"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/protocol"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/relay"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/session"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// ErrProtocolViolation marks an intent that is not valid in the current
// lifecycle state. The session stays usable.
var ErrProtocolViolation = errors.New("protocol violation")

// Lifecycle is the connection-level state of a session.
type Lifecycle string

const (
	LifecycleDisconnected  Lifecycle = "disconnected"
	LifecycleConnected     Lifecycle = "connected"
	LifecycleTopicActive   Lifecycle = "topic_active"
	LifecycleGenerating    Lifecycle = "generating"
	LifecycleAwaitingInput Lifecycle = "awaiting_input"
	LifecycleClosed        Lifecycle = "closed"
)

// DefaultTopic is used when start_topic carries no title.
const DefaultTopic = "General chat"

const generationBuffer = 64

type Config struct {
	Instructions dialogue.Instructions
	Sampling     llm.SamplingConfig
}

type Controller struct {
	relay        *relay.Relay
	memory       *memory.Manager
	instructions dialogue.Instructions
	sampling     llm.SamplingConfig
	metrics      *observability.Metrics
	registry     *session.Manager
}

func NewController(r *relay.Relay, mem *memory.Manager, cfg Config, metrics *observability.Metrics, registry *session.Manager) *Controller {
	if cfg.Instructions.Phases == nil {
		cfg.Instructions = dialogue.DefaultInstructions()
	}
	return &Controller{
		relay:        r,
		memory:       mem,
		instructions: cfg.Instructions,
		sampling:     cfg.Sampling,
		metrics:      metrics,
		registry:     registry,
	}
}

// generation is the state of the single in-flight model call.
type generation struct {
	cancel   context.CancelFunc
	events   chan genEvent
	input    types.Turn
	phase    dialogue.Phase
	snapshot dialogue.State
	started  time.Time
	farewell bool
}

type genEvent struct {
	event  relay.Event
	done   bool
	result relay.Result
	err    error
}

// connection is owned by the RunConnection goroutine; nothing else touches it.
type connection struct {
	c         *Controller
	sess      *types.Session
	out       chan<- any
	lifecycle Lifecycle
	gen       *generation
	// stopping is set once a stop has been accepted and the farewell is
	// streaming.
	stopping   bool
	stopReason string
}

// RunConnection processes one session until the client stops, inbound closes
// or ctx is cancelled. Inbound intents are handled in receipt order, and an
// intent that arrives while a reply is streaming cancels that reply first.
func (c *Controller) RunConnection(ctx context.Context, sess *types.Session, inbound <-chan any, outbound chan<- any) error {
	ctx = logger.WithField(ctx, "session_id", sess.ID)
	conn := &connection{c: c, sess: sess, out: outbound}
	defer conn.cancelGeneration(ctx, "")
	conn.setLifecycle(LifecycleConnected)

	if err := c.memory.CommitSession(ctx, sess); err != nil {
		logger.Warnf(ctx, "commit session: %v", err)
	}

	for {
		var events <-chan genEvent
		if conn.gen != nil {
			events = conn.gen.events
		}

		select {
		case <-ctx.Done():
			conn.close()
			return nil
		case msg, ok := <-inbound:
			if !ok {
				conn.close()
				return nil
			}
			if err := conn.handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					conn.close()
					return nil
				}
				return err
			}
			if conn.lifecycle == LifecycleClosed {
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				// The worker exits without a terminal event only when its
				// context was cancelled underneath it.
				conn.gen = nil
				continue
			}
			if err := conn.onEvent(ctx, ev); err != nil {
				if ctx.Err() != nil {
					conn.close()
					return nil
				}
				return err
			}
			if conn.lifecycle == LifecycleClosed {
				return nil
			}
		}
	}
}

func (conn *connection) handle(ctx context.Context, msg any) error {
	if conn.stopping {
		// Anything after a stop cuts the farewell short.
		conn.cancelGeneration(ctx, "superseded")
		return conn.closeSession(ctx, conn.stopReason)
	}
	if _, invalid := msg.(protocol.Invalid); !invalid {
		conn.cancelGeneration(ctx, "superseded")
	}

	switch m := msg.(type) {
	case protocol.StartTopic:
		return conn.startTopic(ctx, m)
	case protocol.UserMessage:
		return conn.userMessage(ctx, m)
	case protocol.Stop:
		if m.SkipFarewell || !conn.sess.HasTopic() {
			return conn.closeSession(ctx, m.Reason)
		}
		conn.stopping, conn.stopReason = true, m.Reason
		input := types.Turn{Role: types.RoleSystem, Content: dialogue.FarewellPrompt}
		conn.generate(ctx, input, conn.sess.Dialogue).farewell = true
		return nil
	case protocol.SetPreference:
		if err := conn.c.memory.SetPreference(ctx, conn.sess.ProfileID, m.Key, m.Value); err != nil {
			logger.Warnf(ctx, "set preference %q: %v", m.Key, err)
		}
		return conn.systemEvent(ctx, "preference_saved", m.Key)
	case protocol.Invalid:
		return conn.reject(ctx, m.Reason)
	default:
		return conn.reject(ctx, fmt.Sprintf("unsupported intent %T", msg))
	}
}

func (conn *connection) startTopic(ctx context.Context, m protocol.StartTopic) error {
	title := m.Topic
	if title == "" {
		title = DefaultTopic
	}
	sess := conn.sess
	sess.ResetTopic(types.Topic{Title: title, Summary: m.TopicContext})
	if _, err := conn.apply(dialogue.EventTopicSelected); err != nil {
		return err
	}
	conn.setLifecycle(LifecycleTopicActive)

	if err := conn.c.memory.CommitTopic(ctx, sess); err != nil {
		logger.Warnf(ctx, "commit topic: %v", err)
	}
	logger.Infof(ctx, "topic selected: %s", title)

	input := types.Turn{Role: types.RoleSystem, Content: dialogue.IntroPrompt(title)}
	conn.generate(ctx, input, sess.Dialogue)
	return nil
}

func (conn *connection) userMessage(ctx context.Context, m protocol.UserMessage) error {
	sess := conn.sess
	if !sess.HasTopic() {
		return conn.reject(ctx, "start a topic before sending messages")
	}
	if m.Topic != "" && m.Topic != sess.Topic.Title {
		logger.Debugf(ctx, "ignoring client topic %q, active topic is %q", m.Topic, sess.Topic.Title)
	}

	snapshot := sess.Dialogue
	input, event, applies := inputFor(sess, m.Text)
	if applies {
		tr, err := conn.apply(event)
		if err != nil {
			return err
		}
		if tr.Reprompt {
			if err := conn.systemEvent(ctx, "reprompt", "listener has been silent"); err != nil {
				return err
			}
		}
	}
	conn.generate(ctx, input, snapshot)
	return nil
}

// inputFor maps a listener message to the turn that drives the next reply and
// the dialogue event it triggers. applies is false when the current phase does
// not react to that event.
func inputFor(sess *types.Session, text string) (input types.Turn, event dialogue.Event, applies bool) {
	if strings.TrimSpace(text) == "" {
		input = types.Turn{Role: types.RoleSystem, Content: dialogue.SilencePrompt(len(sess.History))}
		return input, dialogue.EventSilence, sess.Dialogue.AcceptsSilence()
	}
	input = types.Turn{Role: types.RoleUser, Content: text}
	return input, dialogue.EventUserResponded, sess.Dialogue.Phase == dialogue.PhaseAsk
}

// request assembles the model call for input in the session's current phase.
// The model always sees the pending input as the listener's line, even when
// it is a synthetic kick-off.
func (c *Controller) request(ctx context.Context, sess *types.Session, input types.Turn) llm.Request {
	guidance := c.instructions.Guidance(sess.Dialogue.Phase)
	msgs := c.memory.BuildContext(ctx, sess, guidance, types.Message{Role: types.RoleUser, Content: input.Content})
	return llm.Request{Messages: msgs, Sampling: c.sampling}
}

// commitExchange appends the input and the reply to the session, both tagged
// with the phase they were generated in. Persistence errors are logged only.
func (c *Controller) commitExchange(ctx context.Context, sess *types.Session, input types.Turn, phase dialogue.Phase, reply string) {
	input.Phase = phase
	if err := c.memory.CommitTurn(ctx, sess, input); err != nil {
		logger.Warnf(ctx, "commit %s turn: %v", input.Role, err)
	}
	if reply == "" {
		return
	}
	turn := types.Turn{Role: types.RoleAssistant, Content: reply, Phase: phase}
	if err := c.memory.CommitTurn(ctx, sess, turn); err != nil {
		logger.Warnf(ctx, "commit assistant turn: %v", err)
	}
}

// generate starts the worker for one reply. snapshot is the dialogue state to
// restore if the reply never completes.
func (conn *connection) generate(ctx context.Context, input types.Turn, snapshot dialogue.State) *generation {
	c, sess := conn.c, conn.sess
	phase := sess.Dialogue.Phase
	req := c.request(ctx, sess, input)

	genCtx, cancel := context.WithCancel(ctx)
	g := &generation{
		cancel:   cancel,
		events:   make(chan genEvent, generationBuffer),
		input:    input,
		phase:    phase,
		snapshot: snapshot,
		started:  time.Now(),
	}
	conn.gen = g
	conn.setLifecycle(LifecycleGenerating)

	go func() {
		defer close(g.events)
		res, err := c.relay.Run(genCtx, req, func(e relay.Event) error {
			select {
			case g.events <- genEvent{event: e}:
				return nil
			case <-genCtx.Done():
				return genCtx.Err()
			}
		})
		select {
		case g.events <- genEvent{done: true, result: res, err: err}:
		case <-genCtx.Done():
		}
	}()
	return g
}

func (conn *connection) onEvent(ctx context.Context, ev genEvent) error {
	if !ev.done {
		switch ev.event.Kind {
		case relay.KindToken:
			return conn.send(ctx, protocol.Token{Type: protocol.TypeToken, Content: ev.event.Content})
		case relay.KindSentence:
			return conn.send(ctx, protocol.Sentence{Type: protocol.TypeSentence, Content: ev.event.Content, Final: ev.event.Final})
		}
		return nil
	}

	g := conn.gen
	conn.gen = nil
	g.cancel()

	if g.farewell {
		return conn.farewell(ctx, g, ev)
	}
	if ev.err != nil {
		return conn.fail(ctx, g, ev.err)
	}
	return conn.complete(ctx, g, ev.result)
}

// complete commits the exchange and then tells the client, so history always
// matches what the client has been sent.
func (conn *connection) complete(ctx context.Context, g *generation, res relay.Result) error {
	sess := conn.sess
	conn.c.commitExchange(ctx, sess, g.input, g.phase, res.Text)
	if _, err := conn.apply(dialogue.EventTurnCompleted); err != nil {
		return err
	}
	conn.setLifecycle(LifecycleAwaitingInput)
	logger.Debugf(ctx, "reply committed after %s, phase now %s", time.Since(g.started).Round(time.Millisecond), sess.Dialogue.Phase)

	return conn.sendComplete(ctx, res.Text)
}

// farewell finishes the goodbye reply and closes the session. The phase does
// not move; a failed farewell is reported before closing.
func (conn *connection) farewell(ctx context.Context, g *generation, ev genEvent) error {
	if ev.err != nil {
		if !errors.Is(ev.err, relay.ErrCancelled) {
			code := errorCode(ev.err)
			logger.Warnf(ctx, "farewell failed (%s): %v", code, ev.err)
			if err := conn.send(ctx, protocol.ErrorEvent{Type: protocol.TypeError, Message: ev.err.Error(), Code: code}); err != nil {
				return err
			}
		}
		return conn.closeSession(ctx, conn.stopReason)
	}
	conn.c.commitExchange(ctx, conn.sess, g.input, g.phase, ev.result.Text)
	if err := conn.sendComplete(ctx, ev.result.Text); err != nil {
		return err
	}
	return conn.closeSession(ctx, conn.stopReason)
}

func (conn *connection) sendComplete(ctx context.Context, content string) error {
	sess := conn.sess
	history := make([]types.Turn, len(sess.History))
	copy(history, sess.History)
	return conn.send(ctx, protocol.Complete{
		Type:    protocol.TypeComplete,
		Content: content,
		History: history,
		State:   sess.Dialogue.Phase.String(),
	})
}

func (conn *connection) fail(ctx context.Context, g *generation, err error) error {
	conn.sess.Dialogue = g.snapshot
	conn.setLifecycle(LifecycleAwaitingInput)

	if errors.Is(err, relay.ErrCancelled) {
		return nil
	}
	code := errorCode(err)
	conn.c.metrics.Event("generation_" + code)
	logger.Warnf(ctx, "generation failed (%s): %v", code, err)
	return conn.send(ctx, protocol.ErrorEvent{Type: protocol.TypeError, Message: err.Error(), Code: code})
}

// cancelGeneration stops the in-flight reply, waits for its worker to exit and
// restores the dialogue state it started from. Nothing it produced is sent or
// committed.
func (conn *connection) cancelGeneration(ctx context.Context, reason string) {
	g := conn.gen
	if g == nil {
		return
	}
	conn.gen = nil
	g.cancel()
	for range g.events {
	}
	conn.sess.Dialogue = g.snapshot
	if reason == "" || ctx.Err() != nil {
		return
	}
	conn.setLifecycle(LifecycleAwaitingInput)
	if err := conn.systemEvent(ctx, "generation_cancelled", reason); err != nil {
		logger.Debugf(ctx, "notify cancel: %v", err)
	}
}

func (conn *connection) apply(e dialogue.Event) (dialogue.Transition, error) {
	tr, err := conn.sess.Dialogue.Apply(e)
	if err != nil {
		// Every event is only applied in phases that accept it.
		return tr, fmt.Errorf("dialogue: %w", err)
	}
	if tr.From != tr.To && conn.c.metrics != nil {
		conn.c.metrics.PhaseTransitions.WithLabelValues(tr.To.String()).Inc()
	}
	return tr, nil
}

func (conn *connection) close() {
	conn.sess.Closed = true
	conn.stopping = false
	conn.setLifecycle(LifecycleClosed)
}

// closeSession closes the session and tells the client.
func (conn *connection) closeSession(ctx context.Context, reason string) error {
	conn.close()
	return conn.send(ctx, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: conn.sess.ID,
		Code:      "session_closed",
		Detail:    reason,
		State:     conn.sess.Dialogue.Phase.String(),
	})
}

func (conn *connection) setLifecycle(l Lifecycle) {
	conn.lifecycle = l
	if reg := conn.c.registry; reg != nil {
		_ = reg.Observe(conn.sess.ID, string(l), conn.sess.Dialogue.Phase.String(), conn.sess.Topic.Title)
	}
}

func (conn *connection) reject(ctx context.Context, reason string) error {
	conn.c.metrics.Event("protocol_violation")
	logger.Infof(ctx, "%v: %s", ErrProtocolViolation, reason)
	return conn.send(ctx, protocol.ErrorEvent{
		Type:    protocol.TypeError,
		Message: fmt.Sprintf("%v: %s", ErrProtocolViolation, reason),
		Code:    protocol.CodeProtocolViolation,
	})
}

func (conn *connection) systemEvent(ctx context.Context, code, detail string) error {
	return conn.send(ctx, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: conn.sess.ID,
		Code:      code,
		Detail:    detail,
		State:     conn.sess.Dialogue.Phase.String(),
	})
}

// send blocks until the writer takes msg. Outbound events are never dropped
// because clients rebuild the reply from them.
func (conn *connection) send(ctx context.Context, msg any) error {
	select {
	case conn.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, llm.ErrModelUnavailable):
		return protocol.CodeModelUnavailable
	case errors.Is(err, relay.ErrGenerationTimeout):
		return protocol.CodeGenerationTimeout
	default:
		return protocol.CodeGenerationFailed
	}
}
