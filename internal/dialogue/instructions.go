package dialogue

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SystemPrompt is the host persona shared by every phase.
const SystemPrompt = `You are a smart, energetic podcast host and driving companion.
You never end conversations.
You explain clearly.
You ask engaging questions.
You speak casually like a friend in a car.
You use examples and stories.
Keep responses concise, under 4 sentences unless explaining something complex.
Always end with a question or invitation to continue.`

// Instructions maps each phase to the behavioral fragment sent with it.
type Instructions struct {
	Persona string
	Phases  map[Phase]string
}

func DefaultInstructions() Instructions {
	return Instructions{
		Persona: SystemPrompt,
		Phases: map[Phase]string{
			PhaseIntro: "You are starting a new topic. Introduce it with excitement and energy. " +
				"Give a brief hook about why this is interesting. End with a question.",
			PhaseExplain: "Explain the current topic in a clear, simple way. " +
				"Use analogies and real-world examples. Keep it conversational.",
			PhaseAsk: "Ask the user a thought-provoking question about the topic. " +
				"Make it personal: 'what do you think?', 'have you ever...?'",
			PhaseReact: "React to what the user just said. Show genuine interest. " +
				"Build on their point. Add your perspective.",
			PhaseExpand: "Expand the discussion. Bring in a related angle, a counter-argument, " +
				"or a fun fact. Keep the energy up.",
		},
	}
}

type instructionsFile struct {
	Persona string            `yaml:"persona"`
	Phases  map[string]string `yaml:"phases"`
}

// LoadInstructions reads a YAML override of the fragment table. Phases not
// named in the file keep their defaults; unknown phase names are rejected.
func LoadInstructions(path string) (Instructions, error) {
	out := DefaultInstructions()
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Instructions{}, fmt.Errorf("read phase instructions: %w", err)
	}
	var f instructionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Instructions{}, fmt.Errorf("parse phase instructions: %w", err)
	}
	if p := strings.TrimSpace(f.Persona); p != "" {
		out.Persona = p
	}
	for name, text := range f.Phases {
		phase := Phase(strings.ToUpper(strings.TrimSpace(name)))
		if !phase.Valid() {
			return Instructions{}, fmt.Errorf("parse phase instructions: unknown phase %q", name)
		}
		if t := strings.TrimSpace(text); t != "" {
			out.Phases[phase] = t
		}
	}
	return out, nil
}

// For returns the fragment for p, empty for PhaseNone.
func (in Instructions) For(p Phase) string {
	return in.Phases[p]
}

// Guidance renders the full system guidance for a phase.
func (in Instructions) Guidance(p Phase) string {
	var b strings.Builder
	b.WriteString(in.Persona)
	b.WriteString("\n\nCurrent conversation state: ")
	b.WriteString(p.String())
	if frag := in.For(p); frag != "" {
		b.WriteString("\n")
		b.WriteString(frag)
	}
	return b.String()
}

// IntroPrompt kicks off a freshly selected topic.
func IntroPrompt(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "something interesting"
	}
	return fmt.Sprintf("Let's start today's podcast episode! The topic is: %s. "+
		"Introduce it with energy and excitement. Hook the listener.", topic)
}

var silencePrompts = []string{
	"The user has been quiet. Ask them an engaging question.",
	"Fill the silence with an interesting fact, then ask for their take.",
	"The user might be thinking. Offer a perspective and invite them to respond.",
	"Keep the conversation going! Share a story related to the topic.",
}

// SilencePrompt picks a filler for a re-prompt, rotating by turn count.
func SilencePrompt(turn int) string {
	if turn < 0 {
		turn = -turn
	}
	return silencePrompts[turn%len(silencePrompts)]
}

// FarewellPrompt closes the episode when the listener stops it.
const FarewellPrompt = "The user wants to end the podcast. Give a warm, short farewell. Thank them."
