package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *OllamaService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewOllamaService(OllamaConfig{BaseURL: server.URL, EmbedModel: "nomic-embed-text"})
	require.NoError(t, err)
	return svc
}

func TestOllamaService_Chat(t *testing.T) {
	var got map[string]any
	svc := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"role":    "assistant",
				"content": `{"title":"Setup","content":"Let x be 2.","next_action":"continue"}`,
			},
			"done":              true,
			"prompt_eval_count": 10,
			"eval_count":        5,
		})
	})

	resp, err := svc.Chat(context.Background(), ChatRequest{
		Model:       "llama3.1",
		Messages:    []ChatMessage{{Role: RoleUser, Content: "What is 2+2?"}},
		MaxTokens:   300,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Text, "Let x be 2.")
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "llama3.1", got["model"])
	assert.Equal(t, false, got["stream"])
	options, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(300), options["num_predict"])
	assert.Equal(t, 0.2, options["temperature"])
}

func TestOllamaService_ChatError(t *testing.T) {
	svc := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := svc.Chat(context.Background(), ChatRequest{Model: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOllamaService_Embed(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		want    []float32
		wantErr error
	}{
		{
			name: "embeddings field",
			body: map[string]any{"embeddings": [][]float32{{0.1, 0.2, 0.3}, {9, 9, 9}}},
			want: []float32{0.1, 0.2, 0.3},
		},
		{
			name: "legacy embedding field",
			body: map[string]any{"embedding": []float32{1, 0}},
			want: []float32{1, 0},
		},
		{
			name:    "no vector",
			body:    map[string]any{"embeddings": [][]float32{}},
			wantErr: ErrEmptyEmbedding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/embed", r.URL.Path)
				var req map[string]any
				_ = json.NewDecoder(r.Body).Decode(&req)
				assert.Equal(t, "nomic-embed-text", req["model"])
				assert.Equal(t, "hello", req["input"])
				_ = json.NewEncoder(w).Encode(tt.body)
			})

			vec, err := svc.Embed(context.Background(), "hello")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, vec)
		})
	}
}

func TestOllamaService_ListModels(t *testing.T) {
	svc := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "llama3.1:latest", "size": 4000000000},
				{"name": "nomic-embed-text:latest", "size": 270000000},
			},
		})
	})

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.1:latest", models[0].Name)
}

func TestOllamaService_Available(t *testing.T) {
	svc := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.True(t, svc.Available())

	down := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.False(t, down.Available())
}

func TestOllamaService_ContextCancelled(t *testing.T) {
	svc := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Embed(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewOllamaService_RejectsHosts(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "public host", baseURL: "http://example.com:11434"},
		{name: "metadata service", baseURL: "http://169.254.169.254"},
		{name: "bad scheme", baseURL: "ftp://localhost:11434"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOllamaService(OllamaConfig{BaseURL: tt.baseURL})
			assert.Error(t, err)
		})
	}

	svc, err := NewOllamaService(OllamaConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaURL, svc.baseURL)
}
