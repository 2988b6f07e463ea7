package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soundprediction/docgraph/pkg/embedder"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// DefaultEmbeddingCacheSize bounds how many text embeddings are memoised.
const DefaultEmbeddingCacheSize = 1024

// EmbeddingSimilarity scores texts by cosine similarity of their embeddings.
// Embeddings are memoised in an LRU cache so repeated pairwise comparisons
// over one batch embed each text once.
type EmbeddingSimilarity struct {
	client embedder.Client
	cache  *lru.Cache[string, []float32]
	logger *slog.Logger
}

// NewEmbeddingSimilarity creates a scorer over client. A non-positive
// cacheSize uses DefaultEmbeddingCacheSize.
func NewEmbeddingSimilarity(client embedder.Client, cacheSize int, logger *slog.Logger) (*EmbeddingSimilarity, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingSimilarity{client: client, cache: cache, logger: logger}, nil
}

// TextSimilarity implements TextSimilarityScorer. Blank text scores 0.
func (s *EmbeddingSimilarity) TextSimilarity(ctx context.Context, a, b string) (float64, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, nil
	}
	vectors, err := s.embed(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return utils.ClippedCosine(vectors[0], vectors[1]), nil
}

func (s *EmbeddingSimilarity) embed(ctx context.Context, texts ...string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	missingAt := make(map[string][]int)

	for i, text := range texts {
		if v, ok := s.cache.Get(text); ok {
			out[i] = v
			continue
		}
		if _, pending := missingAt[text]; !pending {
			missing = append(missing, text)
		}
		missingAt[text] = append(missingAt[text], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := s.client.Embed(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d, got %d", embedder.ErrNoEmbeddings, len(missing), len(vectors))
	}
	for i, text := range missing {
		s.cache.Add(text, vectors[i])
		for _, at := range missingAt[text] {
			out[at] = vectors[i]
		}
	}
	s.logger.Debug("Embedded texts for similarity", "count", len(missing))
	return out, nil
}
