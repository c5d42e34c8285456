package inference

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// MockService is a scripted Service for tests and offline development.
// Chat returns queued responses in order and a canned final step once the
// queue is empty. Embed returns a deterministic unit vector derived from the
// text, or a queued vector when one is configured for it.
type MockService struct {
	dims int

	mu         sync.Mutex
	responses  []mockResponse
	chatCalls  []ChatRequest
	vectors    map[string][]float32
	embedErr   error
	embedCalls []string
	available  bool
}

type mockResponse struct {
	text string
	err  error
}

// NewMockService creates a mock producing vectors of the given dimension.
func NewMockService(dims int) *MockService {
	if dims <= 0 {
		dims = 8
	}
	return &MockService{
		dims:      dims,
		vectors:   make(map[string][]float32),
		available: true,
	}
}

// AddChatResponse queues a chat reply.
func (m *MockService) AddChatResponse(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{text: text, err: err})
}

// SetEmbedding pins the vector returned for text.
func (m *MockService) SetEmbedding(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vec
}

// SetEmbedError makes every Embed call fail with err.
func (m *MockService) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedErr = err
}

// SetAvailable sets the availability status (for testing)
func (m *MockService) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Chat returns the next queued response.
func (m *MockService) Chat(ctx context.Context, req ChatRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.chatCalls = append(m.chatCalls, req)

	if len(m.responses) == 0 {
		return &GenerateResponse{
			Text:         `{"title": "Conclusion", "content": "Mock final answer.", "next_action": "final_answer"}`,
			FinishReason: "stop",
		}, nil
	}

	next := m.responses[0]
	m.responses = m.responses[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &GenerateResponse{
		Text:         next.text,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     len(req.Messages),
			CompletionTokens: len(next.text),
			TotalTokens:      len(req.Messages) + len(next.text),
		},
	}, nil
}

// Embed returns a deterministic vector for text.
func (m *MockService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.embedCalls = append(m.embedCalls, text)
	if m.embedErr != nil {
		return nil, fmt.Errorf("mock embed: %w", m.embedErr)
	}
	if vec, ok := m.vectors[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}
	return hashVector(text, m.dims), nil
}

// Available returns whether the service is available
func (m *MockService) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// ChatCalls returns the recorded chat requests.
func (m *MockService) ChatCalls() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.chatCalls))
	copy(out, m.chatCalls)
	return out
}

// EmbedCalls returns the texts passed to Embed.
func (m *MockService) EmbedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.embedCalls))
	copy(out, m.embedCalls)
	return out
}

func hashVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	var norm float64
	seed := sha256.Sum256([]byte(text))
	for i := range vec {
		block := sha256.Sum256(append(seed[:], byte(i), byte(i>>8)))
		v := float64(binary.BigEndian.Uint32(block[:4]))/math.MaxUint32*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
