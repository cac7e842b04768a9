package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/docuchat/backend/internal/store"
)

// tokensPerMessage approximates per-message framing overhead in chat
// completion requests.
const tokensPerMessage = 3

// EstimateTokens gives a rough token count for budgeting purposes. The
// heuristic blends word and character counts, which tracks subword
// tokenizers closely enough for context-window trimming.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := utf8.RuneCountInString(text)
	estimate := (words + chars/4 + 1) / 2
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// CountMessageTokens estimates the total tokens of a chat message list.
func CountMessageTokens(messages []store.Message) int {
	total := tokensPerMessage // reply priming
	for _, msg := range messages {
		total += tokensPerMessage + EstimateTokens(msg.Content)
	}
	return total
}

// TruncateMessagesToFit returns a subsequence of messages that fits the
// token budget. System messages are always kept; the remaining budget is
// filled with the most recent non-system messages, dropping oldest first.
// Relative order is preserved.
func TruncateMessagesToFit(messages []store.Message, maxTokens int) []store.Message {
	if len(messages) == 0 {
		return messages
	}

	var system, others []store.Message
	for _, msg := range messages {
		if msg.Role == store.RoleSystem {
			system = append(system, msg)
		} else {
			others = append(others, msg)
		}
	}

	budget := CountMessageTokens(system)
	kept := 0
	for i := len(others) - 1; i >= 0; i-- {
		cost := tokensPerMessage + EstimateTokens(others[i].Content)
		if budget+cost > maxTokens {
			break
		}
		budget += cost
		kept++
	}

	result := make([]store.Message, 0, len(system)+kept)
	result = append(result, system...)
	result = append(result, others[len(others)-kept:]...)
	return result
}
