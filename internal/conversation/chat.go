package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/dialogue"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/relay"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// ChatRequest is one stateless exchange. The client carries the history and
// the phase it last received; nothing is kept between requests.
type ChatRequest struct {
	ProfileID    string
	Message      string
	Topic        string
	TopicContext string
	State        string
	History      []types.Turn
}

type ChatResult struct {
	Reply   string
	History []types.Turn
	State   dialogue.Phase
	Turn    int
}

// Chat runs a single reply to completion without streaming. An empty State
// starts at INTRO. Durable memory still records opinions from the message,
// but no session or topic is counted.
func (c *Controller) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	title := strings.TrimSpace(req.Topic)
	if title == "" {
		title = DefaultTopic
	}
	phase := dialogue.PhaseIntro
	if st := strings.TrimSpace(req.State); st != "" {
		phase = dialogue.Phase(strings.ToUpper(st))
		if !phase.Valid() {
			return ChatResult{}, fmt.Errorf("%w: unknown state %q", ErrProtocolViolation, req.State)
		}
	}

	sess := &types.Session{ID: "chat", ProfileID: req.ProfileID}
	sess.ResetTopic(types.Topic{Title: title, Summary: req.TopicContext})
	sess.History = append(sess.History, req.History...)
	sess.Dialogue = dialogue.State{Phase: phase}

	input, event, applies := inputFor(sess, req.Message)
	if applies {
		if _, err := sess.Dialogue.Apply(event); err != nil {
			return ChatResult{}, fmt.Errorf("dialogue: %w", err)
		}
	}
	phase = sess.Dialogue.Phase

	res, err := c.relay.Run(ctx, c.request(ctx, sess, input), func(relay.Event) error { return nil })
	if err != nil {
		c.metrics.Event("generation_" + errorCode(err))
		return ChatResult{}, err
	}
	c.commitExchange(ctx, sess, input, phase, res.Text)
	if _, err := sess.Dialogue.Apply(dialogue.EventTurnCompleted); err != nil {
		return ChatResult{}, fmt.Errorf("dialogue: %w", err)
	}

	turns := 0
	for _, t := range sess.History {
		if t.Role == types.RoleAssistant {
			turns++
		}
	}
	return ChatResult{Reply: res.Text, History: sess.History, State: sess.Dialogue.Phase, Turn: turns}, nil
}
