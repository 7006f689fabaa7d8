package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EmptyReply replaces a model reply with no text.
const EmptyReply = "El LLM no generó texto"

var instTokens = strings.NewReplacer("[INST]", "", "[/INST]", "")

// CleanReply strips instruction tokens echoed by Mistral-style models.
func CleanReply(raw string) string {
	clean := strings.TrimSpace(instTokens.Replace(raw))
	if clean == "" {
		return EmptyReply
	}
	return clean
}

// Decision is a tool call requested by the model.
type Decision struct {
	Action string
	Input  string
}

// ParseDecision reads {"action": ..., "input": ...} from the span between the
// first '{' and the last '}' of reply. ok is false when the reply carries no
// action. A non-string input keeps its JSON text.
func ParseDecision(reply string) (d Decision, ok bool, err error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Decision{}, false, nil
	}

	var raw struct {
		Action string          `json:"action"`
		Input  json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Decision{}, false, fmt.Errorf("invalid action JSON: %w", err)
	}

	action := strings.TrimSpace(raw.Action)
	if action == "" {
		return Decision{}, false, nil
	}
	return Decision{Action: action, Input: inputText(raw.Input)}, true, nil
}

func inputText(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return text
}
