package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aixgo-dev/reasongraph/pkg/security"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaConfig configures an OllamaService.
type OllamaConfig struct {
	BaseURL      string
	EmbedModel   string
	AllowedHosts []string
	Timeout      time.Duration
}

// OllamaService implements Service for Ollama
type OllamaService struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
}

// NewOllamaService creates a new Ollama service. The base URL must pass the
// host guard built from cfg.AllowedHosts.
func NewOllamaService(cfg OllamaConfig) (*OllamaService, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	hosts := cfg.AllowedHosts
	if len(hosts) == 0 {
		hosts = security.DefaultModelHosts
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	guard := security.NewHostGuard(hosts)
	if err := guard.ValidateURL(baseURL); err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: guard.Transport(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &OllamaService{
		baseURL:    strings.TrimRight(parsedURL.String(), "/"),
		embedModel: cfg.EmbedModel,
		httpClient: httpClient,
	}, nil
}

// Chat performs chat completion using Ollama
func (o *OllamaService) Chat(ctx context.Context, req ChatRequest) (*GenerateResponse, error) {
	ollamaReq := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   false,
	}

	options := make(map[string]any)
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if len(options) > 0 {
		ollamaReq["options"] = options
	}

	var chatResp struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Done            bool   `json:"done"`
		DoneReason      string `json:"done_reason"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := o.post(ctx, "/api/chat", ollamaReq, &chatResp); err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	finish := chatResp.DoneReason
	if finish == "" {
		finish = "stop"
	}

	return &GenerateResponse{
		Text:         chatResp.Message.Content,
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     chatResp.PromptEvalCount,
			CompletionTokens: chatResp.EvalCount,
			TotalTokens:      chatResp.PromptEvalCount + chatResp.EvalCount,
		},
	}, nil
}

// Embed returns the first embedding Ollama produces for text.
func (o *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	req := map[string]any{
		"model": o.embedModel,
		"input": text,
	}

	// Older servers answer with "embedding", newer ones with "embeddings".
	var embedResp struct {
		Embedding  []float32   `json:"embedding"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := o.post(ctx, "/api/embed", req, &embedResp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	switch {
	case len(embedResp.Embedding) > 0:
		return embedResp.Embedding, nil
	case len(embedResp.Embeddings) > 0 && len(embedResp.Embeddings[0]) > 0:
		return embedResp.Embeddings[0], nil
	}
	return nil, fmt.Errorf("ollama embed (model %s): %w", o.embedModel, ErrEmptyEmbedding)
}

// ListModels returns available models
func (o *OllamaService) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	models := make([]ModelInfo, len(result.Models))
	for i, m := range result.Models {
		models[i] = ModelInfo{Name: m.Name, Size: m.Size}
	}
	return models, nil
}

// Available checks if Ollama is available
func (o *OllamaService) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/", nil)
	if err != nil {
		return false
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

func (o *OllamaService) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
