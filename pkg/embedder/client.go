package embedder

import (
	"context"
	"errors"
)

// Default model settings for OpenAI-compatible embedders.
const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
	DefaultBatchSize  = 100
)

var (
	// ErrEmptyInput is returned when there is no text to embed.
	ErrEmptyInput = errors.New("no text to embed")
	// ErrNoEmbeddings is returned when a provider answers without vectors.
	ErrNoEmbeddings = errors.New("no embeddings returned")
)

// Client turns text into dense vectors.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle embeds one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the vector length the client produces.
	Dimensions() int
	// Close releases any resources held by the client.
	Close() error
}

// Config holds settings shared by embedding clients.
type Config struct {
	Model      string `json:"model" mapstructure:"model"`
	BaseURL    string `json:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `json:"dimensions,omitempty" mapstructure:"dimensions"`
	BatchSize  int    `json:"batch_size,omitempty" mapstructure:"batch_size"`
}

var knownDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// withDefaults fills the model, dimensions and batch size.
func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Dimensions <= 0 {
		if dims, ok := knownDimensions[c.Model]; ok {
			c.Dimensions = dims
		} else {
			c.Dimensions = DefaultDimensions
		}
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

func embedSingle(ctx context.Context, c Client, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, ErrNoEmbeddings
	}
	return embeddings[0], nil
}
