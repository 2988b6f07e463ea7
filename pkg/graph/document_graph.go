package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// ErrGraphNotBuilt is returned by queries issued before BuildGraph succeeded.
var ErrGraphNotBuilt = errors.New("knowledge graph has not been built")

// maxSeedPhrase is the longest query n-gram matched against entity and topic keys.
const maxSeedPhrase = 3

// DocumentKnowledgeGraph builds a knowledge graph for one result batch and
// answers related-content queries over it.
type DocumentKnowledgeGraph struct {
	analyzer  nlp.Analyzer
	builder   *Builder
	defaults  TraversalOptions
	graph     *KnowledgeGraph
	traverser *Traverser
	logger    *slog.Logger
}

// NewDocumentKnowledgeGraph creates an empty facade. analyzer may be nil, in
// which case semantic traversal scores keyword overlap only and query analysis
// falls back to content words. defaults fill unset fields of per-query options;
// a non-positive defaults.MaxHops uses DefaultMaxHops.
func NewDocumentKnowledgeGraph(analyzer nlp.Analyzer, builderOpts BuilderOptions, defaults TraversalOptions, logger *slog.Logger) *DocumentKnowledgeGraph {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.MaxHops <= 0 {
		defaults.MaxHops = DefaultMaxHops
	}
	if defaults.MinWeight < 0 {
		defaults.MinWeight = 0
	}
	return &DocumentKnowledgeGraph{
		analyzer: analyzer,
		builder:  NewBuilder(builderOpts, logger),
		defaults: defaults,
		logger:   logger,
	}
}

// BuildGraph replaces the current graph with one built from results and
// computes centrality. It returns false only when the batch is unusable:
// nil, or non-empty with no item that survives normalisation.
func (d *DocumentKnowledgeGraph) BuildGraph(ctx context.Context, results []types.SearchResult) bool {
	if results == nil {
		d.logger.Warn("Refusing to build knowledge graph from nil batch")
		return false
	}
	if err := ctx.Err(); err != nil {
		d.logger.Warn("Knowledge graph build cancelled", "error", err)
		return false
	}

	normalized, dropped := types.NormalizeResults(results)
	if dropped > 0 {
		d.logger.Warn("Dropped unusable search results", "dropped", dropped, "total", len(results))
	}
	if len(results) > 0 && len(normalized) == 0 {
		return false
	}

	g := d.builder.Build(normalized)
	g.CalculateCentralityScores()

	var scorer nlp.TextSimilarityScorer
	if d.analyzer != nil {
		scorer = d.analyzer
	}
	d.graph = g
	d.traverser = NewTraverser(g, scorer, d.logger)

	d.logger.Info("Built knowledge graph",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"centrality_method", g.centralityMethod)
	return true
}

// Graph returns the current graph, or nil before BuildGraph.
func (d *DocumentKnowledgeGraph) Graph() *KnowledgeGraph {
	return d.graph
}

// FindRelatedContent seeds a traversal with the nodes whose entities or
// topics match phrases of query and runs it with opts. An empty strategy or
// combination, a non-positive MaxResults and a negative MaxHops or MinWeight
// take the facade defaults; an explicit MaxHops of 0 returns only the seeds.
// A query matching no node yields an empty slice and no error.
func (d *DocumentKnowledgeGraph) FindRelatedContent(ctx context.Context, query string, opts TraversalOptions) ([]*types.TraversalResult, error) {
	if d.graph == nil {
		return nil, ErrGraphNotBuilt
	}
	opts = d.mergeDefaults(opts)
	if _, err := ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []*types.TraversalResult{}, nil
	}

	if opts.Strategy == Semantic && opts.Query == nil {
		analysis, err := d.analyzeQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		opts.Query = analysis
	}

	seeds := d.findSeeds(query, opts.Query)
	if len(seeds) == 0 {
		d.logger.Debug("No seed nodes matched query", "query", query)
		return []*types.TraversalResult{}, nil
	}

	results, err := d.traverser.Traverse(ctx, seeds, opts)
	if err != nil {
		return nil, fmt.Errorf("traversal failed: %w", err)
	}
	return results, nil
}

func (d *DocumentKnowledgeGraph) mergeDefaults(opts TraversalOptions) TraversalOptions {
	if opts.Strategy == "" {
		opts.Strategy = d.defaults.Strategy
	}
	if opts.MaxHops < 0 {
		opts.MaxHops = d.defaults.MaxHops
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = d.defaults.MaxResults
	}
	if opts.MinWeight < 0 {
		opts.MinWeight = d.defaults.MinWeight
	}
	if opts.Combination == "" {
		opts.Combination = d.defaults.Combination
	}
	return opts.withDefaults()
}

func (d *DocumentKnowledgeGraph) analyzeQuery(ctx context.Context, query string) (*nlp.QueryAnalysis, error) {
	if d.analyzer == nil {
		return &nlp.QueryAnalysis{Query: query, Keywords: utils.ContentWords(query)}, nil
	}
	analysis, err := d.analyzer.AnalyzeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query analysis failed: %w", err)
	}
	return analysis, nil
}

// findSeeds matches query phrases of up to three content words, plus any
// entities from the query analysis, against the entity and topic indices.
func (d *DocumentKnowledgeGraph) findSeeds(query string, analysis *nlp.QueryAnalysis) []string {
	phrases := utils.NGrams(utils.ContentWords(query), maxSeedPhrase)
	if analysis != nil {
		for _, e := range analysis.Entities {
			phrases = append(phrases, e.Text)
		}
		phrases = append(phrases, analysis.Keywords...)
	}

	seen := make(map[string]struct{})
	var seeds []string
	add := func(nodes []*types.GraphNode) {
		for _, n := range nodes {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			seeds = append(seeds, n.ID)
		}
	}
	for _, phrase := range utils.UniqueStrings(phrases) {
		add(d.graph.FindNodesByEntity(phrase))
		add(d.graph.FindNodesByTopic(phrase))
	}
	return seeds
}

// GetGraphStatistics returns statistics for the current graph, or nil before
// BuildGraph.
func (d *DocumentKnowledgeGraph) GetGraphStatistics() *GraphStatistics {
	if d.graph == nil {
		return nil
	}
	return d.graph.GetStatistics()
}

// ExportGraph serialises the current graph in the named format.
func (d *DocumentKnowledgeGraph) ExportGraph(format string) ([]byte, error) {
	if d.graph == nil {
		return nil, ErrGraphNotBuilt
	}
	f, err := ParseExportFormat(format)
	if err != nil {
		return nil, err
	}
	return Export(d.graph).Marshal(f)
}
