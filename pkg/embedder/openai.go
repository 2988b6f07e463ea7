package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements Client against the OpenAI embeddings API or any
// OpenAI-compatible server.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates an embedder. An empty BaseURL targets api.openai.com.
func NewOpenAIEmbedder(apiKey string, config Config) *OpenAIEmbedder {
	config = config.withDefaults()

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Embed generates embeddings for texts, splitting requests by batch size.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyInput)
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		req := openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.config.Model),
		}
		if _, known := knownDimensions[e.config.Model]; !known || strings.HasPrefix(e.config.Model, "text-embedding-3") {
			req.Dimensions = e.config.Dimensions
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrNoEmbeddings, end-start, len(resp.Data))
		}

		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			batch[d.Index] = d.Embedding
		}
		out = append(out, batch...)
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, e, text)
}

// Dimensions returns the configured vector length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
