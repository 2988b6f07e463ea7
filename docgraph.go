package docgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/docgraph/pkg/config"
	"github.com/soundprediction/docgraph/pkg/crossdoc"
	"github.com/soundprediction/docgraph/pkg/embedder"
	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

var (
	// ErrUnusableBatch is returned when no result in a batch survives normalisation.
	ErrUnusableBatch = errors.New("batch contains no usable results")
	// ErrEmbedderRequired is returned when an operation needs an embedding client and none is configured.
	ErrEmbedderRequired = errors.New("embedding client not configured")
	// ErrStoreNotWritable is returned by Index when the vector store is missing or read-only.
	ErrStoreNotWritable = errors.New("vector store does not accept writes")
)

// DocGraph is the main interface for analyzing a batch of search results.
// Every method works on the batch it is handed; nothing is kept between calls
// except the embeddings written by Index.
type DocGraph interface {
	// Analyze runs the full cross-document analysis.
	Analyze(ctx context.Context, docs []types.SearchResult) (*crossdoc.Report, error)

	// Relationships lists the documents related to targetID, one entry per
	// requested kind. No kinds means all of them.
	Relationships(ctx context.Context, targetID string, docs []types.SearchResult, kinds []string) (map[crossdoc.RelationshipKind][]string, error)

	// Clusters groups the batch. An empty strategy uses the configured one.
	Clusters(ctx context.Context, docs []types.SearchResult, strategy string) ([]*crossdoc.DocumentCluster, error)

	// Conflicts detects factual conflicts between documents of the batch.
	Conflicts(ctx context.Context, docs []types.SearchResult) (*crossdoc.ConflictAnalysis, error)

	// BuildGraph builds a knowledge graph over the batch.
	BuildGraph(ctx context.Context, docs []types.SearchResult) (*graph.DocumentKnowledgeGraph, error)

	// Related builds a knowledge graph and traverses it from the nodes matching query.
	Related(ctx context.Context, docs []types.SearchResult, query string, opts graph.TraversalOptions) ([]*types.TraversalResult, error)

	// ExportGraph builds a knowledge graph and serialises it.
	ExportGraph(ctx context.Context, docs []types.SearchResult, format string) ([]byte, error)

	// GraphStatistics builds a knowledge graph and reports its shape.
	GraphStatistics(ctx context.Context, docs []types.SearchResult) (*graph.GraphStatistics, error)

	// Index embeds the batch and writes the vectors to the vector store.
	Index(ctx context.Context, docs []types.SearchResult) (int, error)

	// Close releases the embedder, the vector store and any loaded models.
	Close() error
}

// Client implements DocGraph. It is safe for concurrent use: each call
// builds its own graph and similarity matrix.
type Client struct {
	config   *config.Config
	analyzer nlp.Analyzer
	embedder embedder.Client
	store    vectorstore.Store
	engine   *crossdoc.Engine
	closers  []func() error
	logger   *slog.Logger
}

// NewClient wires an already constructed analyzer, embedder and store.
// analyzer, embedderClient and store may each be nil; the engine then
// degrades to structural similarity, skips vector banding and refuses to index.
func NewClient(analyzer nlp.Analyzer, embedderClient embedder.Client, store vectorstore.Store, cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Client{
		config:   cfg,
		analyzer: analyzer,
		embedder: embedderClient,
		store:    store,
		engine:   crossdoc.NewEngine(analyzer, store, cfg.Engine(), logger),
		logger:   logger,
	}
}

// NewClientFromConfig builds the embedder, analyzer and vector store named
// by cfg and wires them into a Client.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	emb, err := NewEmbedder(cfg.Embedding, cfg.Embedder(), logger)
	if err != nil {
		return nil, err
	}
	if emb != nil {
		closers = append(closers, emb.Close)
	}

	analyzer, analyzerClosers, err := NewAnalyzer(cfg.NLP, emb, cfg.Embedding.CacheSize, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, analyzerClosers...)

	store, err := vectorstore.New(ctx, cfg.Store(), logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	if store != nil {
		closers = append(closers, store.Close)
	}

	client := NewClient(analyzer, emb, store, cfg, logger)
	client.closers = closers
	return client, nil
}

// Config returns the client's configuration.
func (c *Client) Config() *config.Config {
	return c.config
}

// Engine returns the cross-document engine.
func (c *Client) Engine() *crossdoc.Engine {
	return c.engine
}

// Store returns the vector store, or nil when none is configured.
func (c *Client) Store() vectorstore.Store {
	return c.store
}

func (c *Client) normalize(docs []types.SearchResult) []types.SearchResult {
	normalized, dropped := types.NormalizeResults(docs)
	if dropped > 0 {
		c.logger.Warn("Dropped unusable search results", "dropped", dropped, "total", len(docs))
	}
	return normalized
}

// Analyze implements DocGraph.
func (c *Client) Analyze(ctx context.Context, docs []types.SearchResult) (*crossdoc.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.engine.AnalyzeDocumentRelationships(ctx, c.normalize(docs)), nil
}

// Relationships implements DocGraph.
func (c *Client) Relationships(ctx context.Context, targetID string, docs []types.SearchResult, kinds []string) (map[crossdoc.RelationshipKind][]string, error) {
	parsed := make([]crossdoc.RelationshipKind, 0, len(kinds))
	for _, k := range kinds {
		kind, err := crossdoc.ParseRelationshipKind(k)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, kind)
	}
	return c.engine.FindDocumentRelationships(ctx, strings.TrimSpace(targetID), c.normalize(docs), parsed)
}

// Clusters implements DocGraph.
func (c *Client) Clusters(ctx context.Context, docs []types.SearchResult, strategy string) ([]*crossdoc.DocumentCluster, error) {
	engineCfg := c.config.Engine()
	chosen := engineCfg.ClusterStrategy
	if strings.TrimSpace(strategy) != "" {
		parsed, err := crossdoc.ParseClusterStrategy(strategy)
		if err != nil {
			return nil, err
		}
		chosen = parsed
	}
	if chosen == "" {
		chosen = crossdoc.DefaultConfig().ClusterStrategy
	}
	return c.engine.Clusters().CreateClusters(ctx, c.normalize(docs), chosen, engineCfg.MaxClusters, engineCfg.MinClusterSize)
}

// Conflicts implements DocGraph.
func (c *Client) Conflicts(ctx context.Context, docs []types.SearchResult) (*crossdoc.ConflictAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.engine.Conflicts().DetectConflicts(ctx, c.normalize(docs)), nil
}

// NewKnowledgeGraph returns an empty knowledge graph facade using the
// client's analyzer and configured defaults.
func (c *Client) NewKnowledgeGraph() *graph.DocumentKnowledgeGraph {
	return graph.NewDocumentKnowledgeGraph(c.analyzer, c.config.Builder(), c.config.TraversalDefaults(), c.logger)
}

// BuildGraph implements DocGraph.
func (c *Client) BuildGraph(ctx context.Context, docs []types.SearchResult) (*graph.DocumentKnowledgeGraph, error) {
	if docs == nil {
		docs = []types.SearchResult{}
	}
	kg := c.NewKnowledgeGraph()
	if !kg.BuildGraph(ctx, docs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrUnusableBatch
	}
	return kg, nil
}

// Related implements DocGraph.
func (c *Client) Related(ctx context.Context, docs []types.SearchResult, query string, opts graph.TraversalOptions) ([]*types.TraversalResult, error) {
	kg, err := c.BuildGraph(ctx, docs)
	if err != nil {
		return nil, err
	}
	return kg.FindRelatedContent(ctx, query, opts)
}

// ExportGraph implements DocGraph.
func (c *Client) ExportGraph(ctx context.Context, docs []types.SearchResult, format string) ([]byte, error) {
	if _, err := graph.ParseExportFormat(format); err != nil {
		return nil, err
	}
	kg, err := c.BuildGraph(ctx, docs)
	if err != nil {
		return nil, err
	}
	return kg.ExportGraph(format)
}

// GraphStatistics implements DocGraph.
func (c *Client) GraphStatistics(ctx context.Context, docs []types.SearchResult) (*graph.GraphStatistics, error) {
	kg, err := c.BuildGraph(ctx, docs)
	if err != nil {
		return nil, err
	}
	return kg.GetGraphStatistics(), nil
}

// Index implements DocGraph. Results are embedded in batches and stored
// under their identity, the key conflict detection looks vectors up by.
func (c *Client) Index(ctx context.Context, docs []types.SearchResult) (int, error) {
	if c.embedder == nil {
		return 0, ErrEmbedderRequired
	}
	writer, ok := c.store.(vectorstore.Writer)
	if c.store == nil || !ok {
		return 0, ErrStoreNotWritable
	}

	var (
		ids      []string
		texts    []string
		projects []string
	)
	seen := make(map[string]struct{})
	for _, doc := range c.normalize(docs) {
		if !doc.HasText() {
			continue
		}
		id := doc.Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		texts = append(texts, doc.Text)
		projects = append(projects, doc.ProjectName)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(texts))
	}

	indexed := 0
	for i, vec := range vectors {
		e := vectorstore.Embedding{DocumentID: ids[i], Project: projects[i], Vector: vec}
		if err := writer.PutEmbedding(ctx, e); err != nil {
			return indexed, fmt.Errorf("failed to store embedding for %s: %w", ids[i], err)
		}
		indexed++
	}
	c.logger.Info("Indexed embeddings", "documents", indexed)
	return indexed, nil
}

// Close implements DocGraph.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
