package embedder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/embedder"
)

func TestNewOpenAIEmbedder(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		config embedder.Config
	}{
		{name: "valid API key", apiKey: "test-api-key", config: embedder.Config{Model: "text-embedding-ada-002"}},
		{name: "empty API key", apiKey: "", config: embedder.Config{Model: "text-embedding-ada-002"}},
		{name: "custom base URL", apiKey: "test-api-key", config: embedder.Config{Model: "text-embedding-ada-002", BaseURL: "https://api.example.com"}},
		{name: "empty model uses default", apiKey: "test-api-key", config: embedder.Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder(tt.apiKey, tt.config)
			assert.NotNil(t, client)
			assert.Greater(t, client.Dimensions(), 0)
		})
	}
}

func TestEmbedderInterface(t *testing.T) {
	var _ embedder.Client = (*embedder.OpenAIEmbedder)(nil)
	var _ embedder.Client = (*embedder.EmbedEverythingClient)(nil)
	var _ embedder.Client = (*embedder.RetryClient)(nil)
}

func TestEmbedderConfig(t *testing.T) {
	tests := []struct {
		name         string
		config       embedder.Config
		expectedDims int
	}{
		{name: "default config", config: embedder.Config{Model: "text-embedding-ada-002"}, expectedDims: 1536},
		{name: "config with custom settings", config: embedder.Config{Model: "text-embedding-3-small", BaseURL: "https://custom.openai.com"}, expectedDims: 1536},
		{name: "large model", config: embedder.Config{Model: "text-embedding-3-large"}, expectedDims: 3072},
		{name: "custom dimensions", config: embedder.Config{Model: "custom-model", Dimensions: 512}, expectedDims: 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := embedder.NewOpenAIEmbedder("test-key", tt.config)
			assert.Equal(t, tt.expectedDims, client.Dimensions())
		})
	}
}

func TestEmbedderRejectsEmptyText(t *testing.T) {
	client := embedder.NewOpenAIEmbedder("invalid-key", embedder.Config{})

	embedding, err := client.EmbedSingle(context.Background(), "  ")
	assert.ErrorIs(t, err, embedder.ErrEmptyInput)
	assert.Nil(t, embedding)

	_, err = client.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, embedder.ErrEmptyInput)
}

// fakeEmbeddingServer answers OpenAI-style embedding requests with a vector
// whose first component is the input's length.
func fakeEmbeddingServer(t *testing.T, failFirst int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		data := make([]map[string]interface{}, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(in)), 1, 0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIEmbedderAgainstFakeServer(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, 0)
	client := embedder.NewOpenAIEmbedder("test-key", embedder.Config{
		Model:     "custom-model",
		BaseURL:   srv.URL + "/v1",
		BatchSize: 2,
	})

	embeddings, err := client.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, embeddings, 3)
	assert.Equal(t, float32(1), embeddings[0][0])
	assert.Equal(t, float32(2), embeddings[1][0])
	assert.Equal(t, float32(3), embeddings[2][0])
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "three texts with batch size two need two requests")
}

func TestRetryClientRecoversFromServerErrors(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, 2)
	base := embedder.NewOpenAIEmbedder("test-key", embedder.Config{Model: "custom-model", BaseURL: srv.URL + "/v1"})
	client := embedder.NewRetryClient(base, &embedder.RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}, nil)

	embedding, err := client.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), embedding[0])
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestRetryClientDoesNotRetryInvalidInput(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, 0)
	base := embedder.NewOpenAIEmbedder("test-key", embedder.Config{BaseURL: srv.URL + "/v1"})
	client := embedder.NewRetryClient(base, nil, nil)

	_, err := client.EmbedSingle(context.Background(), "")
	assert.ErrorIs(t, err, embedder.ErrEmptyInput)
	assert.Zero(t, atomic.LoadInt32(calls))
}
