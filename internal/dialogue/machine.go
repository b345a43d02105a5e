// Package dialogue holds the podcast phase machine: five fixed phases, the
// events that move between them and the instruction fragment attached to each.
package dialogue

import (
	"errors"
	"fmt"
)

// Phase is one of the five podcast stages. The zero value means no topic has
// been selected yet.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseIntro   Phase = "INTRO"
	PhaseExplain Phase = "EXPLAIN"
	PhaseAsk     Phase = "ASK"
	PhaseReact   Phase = "REACT"
	PhaseExpand  Phase = "EXPAND"
)

// Phases lists every selectable phase in loop order.
var Phases = []Phase{PhaseIntro, PhaseExplain, PhaseAsk, PhaseReact, PhaseExpand}

func (p Phase) Valid() bool {
	switch p {
	case PhaseIntro, PhaseExplain, PhaseAsk, PhaseReact, PhaseExpand:
		return true
	default:
		return false
	}
}

func (p Phase) String() string {
	if p == PhaseNone {
		return "NONE"
	}
	return string(p)
}

// Event is a trigger fed to Advance.
type Event string

const (
	EventTopicSelected Event = "topic_selected"
	EventTurnCompleted Event = "turn_completed"
	EventUserResponded Event = "user_responded"
	EventSilence       Event = "silence"
)

// RepromptAfter is the number of consecutive silent inputs in ASK that trigger
// a host re-prompt. The counter restarts after each re-prompt, so silence never
// gives up and never advances the phase.
const RepromptAfter = 2

var ErrInvalidTransition = errors.New("invalid phase transition")

// Advance returns the phase that follows p on event e. Pairs outside the
// transition table are caller errors.
func Advance(p Phase, e Event) (Phase, error) {
	if e == EventTopicSelected {
		return PhaseIntro, nil
	}
	switch p {
	case PhaseIntro:
		if e == EventTurnCompleted {
			return PhaseExplain, nil
		}
	case PhaseExplain:
		if e == EventTurnCompleted {
			return PhaseAsk, nil
		}
	case PhaseAsk:
		switch e {
		case EventUserResponded:
			return PhaseReact, nil
		case EventSilence, EventTurnCompleted:
			// A completed ASK turn is the question itself; the answer is still pending.
			return PhaseAsk, nil
		}
	case PhaseReact:
		if e == EventTurnCompleted {
			return PhaseExpand, nil
		}
	case PhaseExpand:
		if e == EventTurnCompleted {
			return PhaseAsk, nil
		}
	}
	return p, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, p)
}

// State is the per-session dialogue state. It is a plain value so callers can
// snapshot it before a generation and restore it if the generation is dropped.
type State struct {
	Phase   Phase `json:"phase"`
	Silence int   `json:"silence"`
}

// Transition describes the effect of one applied event.
type Transition struct {
	From     Phase
	To       Phase
	Event    Event
	Reprompt bool
}

// Apply advances the state on e and maintains the consecutive-silence counter.
// On error the state is left untouched.
func (s *State) Apply(e Event) (Transition, error) {
	next, err := Advance(s.Phase, e)
	if err != nil {
		return Transition{From: s.Phase, To: s.Phase, Event: e}, err
	}
	t := Transition{From: s.Phase, To: next, Event: e}
	switch e {
	case EventSilence:
		s.Silence++
		if s.Silence >= RepromptAfter {
			t.Reprompt = true
			s.Silence = 0
		}
	case EventTopicSelected, EventUserResponded:
		s.Silence = 0
	}
	s.Phase = next
	return t, nil
}

// AcceptsSilence reports whether an empty user input is meaningful in the
// current phase.
func (s State) AcceptsSilence() bool {
	return s.Phase == PhaseAsk
}
