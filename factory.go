package docgraph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/docgraph/pkg/config"
	"github.com/soundprediction/docgraph/pkg/embedder"
	"github.com/soundprediction/docgraph/pkg/nlp"
)

// Embedding providers.
const (
	ProviderNone            = "none"
	ProviderOpenAI          = "openai"
	ProviderEmbedEverything = "embedeverything"
)

// NLP backends.
const (
	SimilarityLexical   = "lexical"
	SimilarityEmbedding = "embedding"

	EntitiesProse  = "prose"
	EntitiesGliner = "gliner"
	EntitiesBoth   = "both"
	EntitiesNone   = "none"
)

// NewEmbedder creates the embedding client named by cfg.Provider, wrapped in
// a retry client. It returns nil and no error when embeddings are disabled or
// an OpenAI provider has neither an API key nor a base URL.
func NewEmbedder(cfg config.EmbeddingConfig, clientCfg embedder.Config, logger *slog.Logger) (embedder.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var client embedder.Client
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			logger.Debug("No OpenAI credentials; embeddings disabled")
			return nil, nil
		}
		client = embedder.NewOpenAIEmbedder(cfg.APIKey, clientCfg)
	case ProviderEmbedEverything:
		ee, err := embedder.NewEmbedEverythingClient(clientCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedeverything client: %w", err)
		}
		client = ee
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	retry := embedder.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	return embedder.NewRetryClient(client, retry, logger), nil
}

// NewAnalyzer composes the NLP collaborator from cfg: a lexical or embedding
// similarity scorer, prose and/or GLiNER entity extraction and prose query
// analysis. The returned closers release loaded models.
func NewAnalyzer(cfg config.NLPConfig, emb embedder.Client, cacheSize int, logger *slog.Logger) (nlp.Analyzer, []func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prose := nlp.NewProseAnalyzer(logger, nlp.WithNamedEntities(cfg.NamedEntities))

	var similarity nlp.TextSimilarityScorer
	switch strings.ToLower(strings.TrimSpace(cfg.Similarity)) {
	case "", SimilarityLexical:
		similarity = nlp.LexicalSimilarity{}
	case SimilarityEmbedding:
		if emb == nil {
			return nil, nil, fmt.Errorf("embedding similarity: %w", ErrEmbedderRequired)
		}
		es, err := nlp.NewEmbeddingSimilarity(emb, cacheSize, logger)
		if err != nil {
			return nil, nil, err
		}
		similarity = es
	default:
		return nil, nil, fmt.Errorf("unsupported similarity backend: %s", cfg.Similarity)
	}

	var (
		extractor nlp.EntityExtractor
		closers   []func() error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Entities)) {
	case "", EntitiesProse:
		extractor = prose
	case EntitiesNone:
		extractor = nlp.MergedExtractor{}
	case EntitiesGliner, EntitiesBoth:
		gliner, err := nlp.NewGlinerExtractor(cfg.GlinerModel, cfg.Labels, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, gliner.Close)
		extractor = gliner
		if strings.EqualFold(strings.TrimSpace(cfg.Entities), EntitiesBoth) {
			extractor = nlp.MergedExtractor{prose, gliner}
		}
	default:
		return nil, nil, fmt.Errorf("unsupported entity backend: %s", cfg.Entities)
	}

	return nlp.Compose(similarity, extractor, prose), closers, nil
}
