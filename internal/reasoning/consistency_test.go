package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
)

func TestStubConsistencyChecker(t *testing.T) {
	ok, err := StubConsistencyChecker{}.Check(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModelConsistencyChecker(t *testing.T) {
	tests := []struct {
		name      string
		responses []string
		want      bool
		wantCalls int
	}{
		{name: "consistent", responses: []string{"Consistent."}, want: true, wantCalls: 1},
		{name: "inconsistent", responses: []string{"  INCONSISTENT: the evaluation disagrees"}, want: false, wantCalls: 1},
		{name: "retry then consistent", responses: []string{"maybe", "consistent"}, want: true, wantCalls: 2},
		{name: "gives up after five", responses: []string{"a", "b", "c", "d", "e", "consistent"}, want: false, wantCalls: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := inference.NewMockService(4)
			for _, r := range tt.responses {
				mock.AddChatResponse(r, nil)
			}
			checker := NewModelConsistencyChecker(mock, "llama3.1", nil)

			got, err := checker.Check(context.Background(), "It is 4.", "Correct.")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			calls := mock.ChatCalls()
			require.Len(t, calls, tt.wantCalls)
			assert.Equal(t, "Final answer: It is 4.\n\nEvaluation: Correct.\n\nAre these consistent? Respond with ONLY 'consistent' or 'inconsistent'.", calls[0].Messages[1].Content)
			assert.Equal(t, 50, calls[0].MaxTokens)
			if tt.wantCalls > 1 {
				assert.Len(t, calls[1].Messages, 3)
				assert.Equal(t, consistencyRetryPrompt, calls[1].Messages[2].Content)
			}
		})
	}
}

func TestModelConsistencyChecker_ChatError(t *testing.T) {
	boom := errors.New("offline")
	mock := inference.NewMockService(4)
	mock.AddChatResponse("", boom)

	_, err := NewModelConsistencyChecker(mock, "m", nil).Check(context.Background(), "a", "b")
	assert.ErrorIs(t, err, boom)
}
