package inference

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockService_ChatQueue(t *testing.T) {
	m := NewMockService(4)
	m.AddChatResponse("first", nil)
	m.AddChatResponse("", errors.New("second fails"))

	resp, err := m.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	_, err = m.Chat(context.Background(), ChatRequest{})
	assert.ErrorContains(t, err, "second fails")

	resp, err = m.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "final_answer")
	assert.Len(t, m.ChatCalls(), 3)
}

func TestMockService_Embed(t *testing.T) {
	m := NewMockService(16)

	a1, err := m.Embed(context.Background(), "alpha")
	require.NoError(t, err)
	a2, _ := m.Embed(context.Background(), "alpha")
	b, _ := m.Embed(context.Background(), "beta")

	assert.Len(t, a1, 16)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)

	var norm float64
	for _, v := range a1 {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	m.SetEmbedding("pinned", []float32{1, 0})
	pinned, _ := m.Embed(context.Background(), "pinned")
	assert.Equal(t, []float32{1, 0}, pinned)

	m.SetEmbedError(errors.New("down"))
	_, err = m.Embed(context.Background(), "alpha")
	assert.Error(t, err)
	assert.Equal(t, []string{"alpha", "alpha", "beta", "pinned", "alpha"}, m.EmbedCalls())
}

func TestMockService_Cancelled(t *testing.T) {
	m := NewMockService(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Chat(ctx, ChatRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
