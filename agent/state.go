package agent

import (
	"encoding/json"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Step records one tool invocation of a turn.
type Step struct {
	Action      string `json:"action"`
	Input       string `json:"input"`
	Observation string `json:"observation"`
}

// State is the state shared by the graph nodes.
//
// Node results are deltas: Messages and Steps are appended, Action and
// ToolInput replaced, LastToolUsed replaced when set, Iterations added.
type State struct {
	Messages     []llms.MessageContent
	Action       string
	ToolInput    string
	LastToolUsed string
	Steps        []Step
	Iterations   int
}

func mergeState(current, update State) (State, error) {
	current.Messages = appendMessages(current.Messages, update.Messages)
	if len(update.Steps) > 0 {
		steps := make([]Step, 0, len(current.Steps)+len(update.Steps))
		steps = append(steps, current.Steps...)
		current.Steps = append(steps, update.Steps...)
	}
	current.Action = update.Action
	current.ToolInput = update.ToolInput
	if update.LastToolUsed != "" {
		current.LastToolUsed = update.LastToolUsed
	}
	current.Iterations += update.Iterations
	return current, nil
}

func appendMessages(current, update []llms.MessageContent) []llms.MessageContent {
	if len(update) == 0 {
		return current
	}
	out := make([]llms.MessageContent, 0, len(current)+len(update))
	out = append(out, current...)
	return append(out, update...)
}

// MessageText returns the concatenated text parts of a message.
func MessageText(m llms.MessageContent) string {
	var b strings.Builder
	for _, part := range m.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			b.WriteString(p.Text)
		case *llms.TextContent:
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

type wireMessage struct {
	Role llms.ChatMessageType `json:"role"`
	Text string               `json:"text"`
}

type wireState struct {
	Messages     []wireMessage `json:"messages"`
	Action       string        `json:"action,omitempty"`
	ToolInput    string        `json:"tool_input,omitempty"`
	LastToolUsed string        `json:"last_tool_used,omitempty"`
	Steps        []Step        `json:"steps,omitempty"`
	Iterations   int           `json:"iterations"`
}

// MarshalJSON encodes the state for checkpoints. Messages keep only their
// role and text.
func (s State) MarshalJSON() ([]byte, error) {
	w := wireState{
		Messages:     make([]wireMessage, len(s.Messages)),
		Action:       s.Action,
		ToolInput:    s.ToolInput,
		LastToolUsed: s.LastToolUsed,
		Steps:        s.Steps,
		Iterations:   s.Iterations,
	}
	for i, m := range s.Messages {
		w.Messages[i] = wireMessage{Role: m.Role, Text: MessageText(m)}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a state written by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = State{
		Action:       w.Action,
		ToolInput:    w.ToolInput,
		LastToolUsed: w.LastToolUsed,
		Steps:        w.Steps,
		Iterations:   w.Iterations,
	}
	if len(w.Messages) > 0 {
		s.Messages = make([]llms.MessageContent, len(w.Messages))
		for i, m := range w.Messages {
			s.Messages[i] = llms.TextParts(m.Role, m.Text)
		}
	}
	return nil
}
