package reasoning

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
)

// ConsistencyChecker decides whether an evaluation agrees with the final answer.
type ConsistencyChecker interface {
	Check(ctx context.Context, finalAnswer, evaluation string) (bool, error)
}

// StubConsistencyChecker accepts every evaluation.
type StubConsistencyChecker struct{}

// Check always reports consistent.
func (StubConsistencyChecker) Check(context.Context, string, string) (bool, error) {
	return true, nil
}

const (
	defaultConsistencyAttempts = 5
	consistencyMaxTokens       = 50
)

// ModelConsistencyChecker asks a model to compare the answer and the
// evaluation. A reply must start with "consistent" or "inconsistent"; after
// the last attempt without one the answer is treated as inconsistent.
type ModelConsistencyChecker struct {
	chat     inference.ChatService
	model    string
	attempts int
	logger   *zap.Logger
}

// NewModelConsistencyChecker creates a checker backed by chat.
func NewModelConsistencyChecker(chat inference.ChatService, model string, logger *zap.Logger) *ModelConsistencyChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelConsistencyChecker{
		chat:     chat,
		model:    model,
		attempts: defaultConsistencyAttempts,
		logger:   logger,
	}
}

// Check implements ConsistencyChecker.
func (c *ModelConsistencyChecker) Check(ctx context.Context, finalAnswer, evaluation string) (bool, error) {
	messages := []inference.ChatMessage{
		{Role: inference.RoleSystem, Content: consistencySystemPrompt},
		{Role: inference.RoleUser, Content: fmt.Sprintf(consistencyUserPrompt, finalAnswer, evaluation)},
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, err := c.chat.Chat(ctx, inference.ChatRequest{
			Model:     c.model,
			Messages:  append([]inference.ChatMessage(nil), messages...),
			MaxTokens: consistencyMaxTokens,
		})
		if err != nil {
			return false, fmt.Errorf("consistency check: %w", err)
		}

		verdict := strings.ToLower(strings.TrimSpace(resp.Text))
		switch {
		case strings.HasPrefix(verdict, "consistent"):
			return true, nil
		case strings.HasPrefix(verdict, "inconsistent"):
			return false, nil
		}

		c.logger.Debug("invalid consistency verdict",
			zap.Int("attempt", attempt),
			zap.String("response", verdict),
		)
		messages = append(messages, inference.ChatMessage{Role: inference.RoleUser, Content: consistencyRetryPrompt})
	}

	c.logger.Warn("no valid consistency verdict, defaulting to inconsistent", zap.Int("attempts", c.attempts))
	return false, nil
}
