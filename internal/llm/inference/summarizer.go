package inference

import (
	"context"
	"fmt"
	"strings"
)

// MaxTitleRunes is the maximum length of a summarized title.
const MaxTitleRunes = 20

const (
	summarizerSystemPrompt = "You are a concise summarizer. Provide a very short title (under 20 characters) for the given content."
	summarizerUserPrompt   = "Summarize this in under 20 characters: \n%s"
	summarizerMaxTokens    = 50
)

// Summarizer produces short node titles from step content.
type Summarizer struct {
	chat  ChatService
	model string
}

// NewSummarizer creates a summarizer that asks model through chat.
func NewSummarizer(chat ChatService, model string) *Summarizer {
	return &Summarizer{chat: chat, model: model}
}

// Summarize returns a title of at most MaxTitleRunes runes for content.
func (s *Summarizer) Summarize(ctx context.Context, content string) (string, error) {
	resp, err := s.chat.Chat(ctx, ChatRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: summarizerSystemPrompt},
			{Role: RoleUser, Content: fmt.Sprintf(summarizerUserPrompt, content)},
		},
		MaxTokens: summarizerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return TruncateRunes(strings.TrimSpace(resp.Text), MaxTitleRunes), nil
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
