package inference

import (
	"context"
	"errors"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyEmbedding is returned when an embedding backend answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// ChatService performs one chat completion round-trip.
type ChatService interface {
	Chat(ctx context.Context, req ChatRequest) (*GenerateResponse, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service is a backend that can both chat and embed.
type Service interface {
	ChatService
	Embedder
	Available() bool
}

// ChatMessage represents a chat message
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// GenerateResponse represents an inference response
type GenerateResponse struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelInfo represents model information
type ModelInfo struct {
	Name string
	Size int64
}
