package inference

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient is the subset of the go-openai client used by OpenAIService.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIConfig configures an OpenAIService.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
}

// OpenAIService implements Service for OpenAI-compatible APIs.
type OpenAIService struct {
	client     OpenAIClient
	embedModel string
}

// NewOpenAIService creates a service backed by a go-openai client. BaseURL
// may point at any OpenAI-compatible server.
func NewOpenAIService(cfg OpenAIConfig) *OpenAIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewOpenAIServiceWithClient(openai.NewClientWithConfig(clientCfg), cfg.EmbedModel)
}

// NewOpenAIServiceWithClient wraps an existing client.
func NewOpenAIServiceWithClient(client OpenAIClient, embedModel string) *OpenAIService {
	return &OpenAIService{client: client, embedModel: embedModel}
}

// Chat performs one chat completion.
func (s *OpenAIService) Chat(ctx context.Context, req ChatRequest) (*GenerateResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: no choices in response")
	}

	choice := resp.Choices[0]
	return &GenerateResponse{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Embed returns the embedding of text.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed (model %s): %w", s.embedModel, ErrEmptyEmbedding)
	}
	return resp.Data[0].Embedding, nil
}

// Available reports true; the API is probed lazily by the first request.
func (s *OpenAIService) Available() bool {
	return s.client != nil
}
