package agent

import "github.com/tmc/langchaingo/llms"

// recentMessages keeps at most limit messages from the end of history. The
// window starts at a user message and never drops the latest one, so the
// model always sees the question it is answering.
func recentMessages(history []llms.MessageContent, limit int) []llms.MessageContent {
	if limit <= 0 || len(history) <= limit {
		return history
	}

	last := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llms.ChatMessageTypeHuman {
			last = i
			break
		}
	}

	start := min(len(history)-limit, last)
	for start < last && history[start].Role != llms.ChatMessageTypeHuman {
		start++
	}
	return history[start:]
}
