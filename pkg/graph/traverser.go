package graph

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// Strategy selects how a traversal expands from its seed nodes.
type Strategy string

const (
	BreadthFirst Strategy = "breadth_first"
	Weighted     Strategy = "weighted"
	Semantic     Strategy = "semantic"
	Centrality   Strategy = "centrality"
)

// WeightCombination folds edge weights along a path into its total weight.
type WeightCombination string

const (
	CombineProduct WeightCombination = "product"
	CombineMinimum WeightCombination = "minimum"
)

var (
	ErrUnknownStrategy    = errors.New("unknown traversal strategy")
	ErrUnknownCombination = errors.New("unknown weight combination")
	ErrQueryRequired      = errors.New("semantic traversal requires a query analysis")
)

// ParseStrategy converts s into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case BreadthFirst, Weighted, Semantic, Centrality:
		return st, nil
	case "bfs":
		return BreadthFirst, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// ParseWeightCombination converts s into a WeightCombination.
func ParseWeightCombination(s string) (WeightCombination, error) {
	switch c := WeightCombination(strings.ToLower(strings.TrimSpace(s))); c {
	case CombineProduct, CombineMinimum:
		return c, nil
	case "":
		return CombineProduct, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCombination, s)
}

// Default traversal limits.
const (
	DefaultMaxHops    = 3
	DefaultMaxResults = 20
)

// UseDefault leaves MaxHops or MinWeight unset so the facade default, then
// the package default, applies.
const UseDefault = -1

// TraversalOptions bounds and steers a traversal.
type TraversalOptions struct {
	Strategy Strategy
	// MaxHops is a hard limit; 0 returns only the seeds, negative is unset
	// and uses DefaultMaxHops.
	MaxHops int
	// MaxResults truncates after sorting; non-positive uses DefaultMaxResults.
	MaxResults int
	// MinWeight excludes edges lighter than this from the traversal; negative
	// is unset and excludes nothing.
	MinWeight   float64
	Combination WeightCombination
	// Query is required by the semantic strategy.
	Query *nlp.QueryAnalysis
}

func (o TraversalOptions) withDefaults() TraversalOptions {
	if o.Strategy == "" {
		o.Strategy = BreadthFirst
	}
	if o.MaxHops < 0 {
		o.MaxHops = DefaultMaxHops
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MinWeight < 0 {
		o.MinWeight = 0
	}
	if o.Combination == "" {
		o.Combination = CombineProduct
	}
	return o
}

// RelatedOptions returns options for strategy with hops, results and weight
// left to the defaults.
func RelatedOptions(strategy Strategy) TraversalOptions {
	return TraversalOptions{Strategy: strategy, MaxHops: UseDefault, MinWeight: UseDefault}
}

// Traverser walks a KnowledgeGraph from seed nodes.
type Traverser struct {
	graph  *KnowledgeGraph
	scorer nlp.TextSimilarityScorer
	logger *slog.Logger
}

// NewTraverser creates a traverser. scorer is only used by the semantic
// strategy and may be nil, in which case keyword overlap alone is scored.
func NewTraverser(g *KnowledgeGraph, scorer nlp.TextSimilarityScorer, logger *slog.Logger) *Traverser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Traverser{graph: g, scorer: scorer, logger: logger}
}

// path is an in-progress walk from a seed.
type path struct {
	nodes  []string
	edges  []*types.GraphEdge
	weight float64
}

func (p *path) last() string { return p.nodes[len(p.nodes)-1] }

func (p *path) contains(id string) bool {
	for _, n := range p.nodes {
		if n == id {
			return true
		}
	}
	return false
}

func (p *path) extend(id string, edge *types.GraphEdge, combine WeightCombination) *path {
	next := &path{
		nodes: make([]string, len(p.nodes), len(p.nodes)+1),
		edges: make([]*types.GraphEdge, len(p.edges), len(p.edges)+1),
	}
	copy(next.nodes, p.nodes)
	copy(next.edges, p.edges)
	next.nodes = append(next.nodes, id)
	next.edges = append(next.edges, edge)

	// The store accepts any finite non-negative weight; paths combine it as
	// a strength in [0, 1].
	w := utils.Clamp(edge.Weight, 0, 1)
	switch combine {
	case CombineMinimum:
		next.weight = math.Min(p.weight, w)
	default:
		next.weight = p.weight * w
	}
	return next
}

// Traverse explores the graph from seeds and returns one result per reached
// node, seeds included at hop 0. Unknown seed ids are ignored.
func (t *Traverser) Traverse(ctx context.Context, seeds []string, opts TraversalOptions) ([]*types.TraversalResult, error) {
	opts = opts.withDefaults()
	if _, err := ParseWeightCombination(string(opts.Combination)); err != nil {
		return nil, err
	}

	var start []*path
	seen := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		if t.graph.GetNode(id) == nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		start = append(start, &path{nodes: []string{id}, weight: 1.0})
	}

	var paths []*path
	switch opts.Strategy {
	case BreadthFirst:
		paths = t.breadthFirst(start, opts)
	case Weighted:
		paths = t.weighted(start, opts)
	case Semantic:
		if opts.Query == nil {
			return nil, ErrQueryRequired
		}
		return t.semantic(ctx, start, opts)
	case Centrality:
		paths = t.centrality(start, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
	}

	results := make([]*types.TraversalResult, 0, len(paths))
	for _, p := range paths {
		results = append(results, t.toResult(p, 0))
	}
	if opts.Strategy == Weighted {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].TotalWeight != results[j].TotalWeight {
				return results[i].TotalWeight > results[j].TotalWeight
			}
			return results[i].HopCount < results[j].HopCount
		})
	}
	return truncate(results, opts.MaxResults), nil
}

func truncate(results []*types.TraversalResult, max int) []*types.TraversalResult {
	if len(results) > max {
		return results[:max]
	}
	return results
}

// neighbors returns the heaviest edge to each distinct neighbour of id,
// ordered by weight descending then id ascending, skipping edges below
// minWeight.
func (t *Traverser) neighbors(id string, minWeight float64) []Neighbor {
	all := t.graph.GetNeighbors(id)
	out := make([]Neighbor, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, nb := range all {
		if nb.ID == id || nb.Edge.Weight < minWeight {
			continue
		}
		if _, dup := seen[nb.ID]; dup {
			continue
		}
		seen[nb.ID] = struct{}{}
		out = append(out, nb)
	}
	return out
}

func (t *Traverser) breadthFirst(start []*path, opts TraversalOptions) []*path {
	visited := make(map[string]struct{})
	var out []*path
	queue := make([]*path, 0, len(start))
	for _, p := range start {
		visited[p.last()] = struct{}{}
		out = append(out, p)
		queue = append(queue, p)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if len(current.edges) >= opts.MaxHops {
			continue
		}
		for _, nb := range t.neighbors(current.last(), opts.MinWeight) {
			if _, ok := visited[nb.ID]; ok {
				continue
			}
			visited[nb.ID] = struct{}{}
			next := current.extend(nb.ID, nb.Edge, opts.Combination)
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

// pathQueue is a max-heap over a priority function.
type pathQueue struct {
	items    []*path
	priority func(*path) float64
}

func (q *pathQueue) Len() int { return len(q.items) }
func (q *pathQueue) Less(i, j int) bool {
	pi, pj := q.priority(q.items[i]), q.priority(q.items[j])
	if pi != pj {
		return pi > pj
	}
	if len(q.items[i].edges) != len(q.items[j].edges) {
		return len(q.items[i].edges) < len(q.items[j].edges)
	}
	return q.items[i].last() < q.items[j].last()
}
func (q *pathQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *pathQueue) Push(x any)    { q.items = append(q.items, x.(*path)) }
func (q *pathQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// bestFirst pops the highest-priority path, finalises its end node and
// pushes its extensions. Each node is reported once, on its first pop.
func (t *Traverser) bestFirst(start []*path, opts TraversalOptions, priority func(*path) float64) []*path {
	q := &pathQueue{priority: priority}
	for _, p := range start {
		heap.Push(q, p)
	}

	finalized := make(map[string]struct{})
	var out []*path
	for q.Len() > 0 {
		current := heap.Pop(q).(*path)
		if _, done := finalized[current.last()]; done {
			continue
		}
		finalized[current.last()] = struct{}{}
		out = append(out, current)

		if len(current.edges) >= opts.MaxHops {
			continue
		}
		for _, nb := range t.neighbors(current.last(), opts.MinWeight) {
			if _, done := finalized[nb.ID]; done || current.contains(nb.ID) {
				continue
			}
			heap.Push(q, current.extend(nb.ID, nb.Edge, opts.Combination))
		}
	}
	return out
}

// weighted finds, for each reachable node, the path with the highest
// combined weight. extend clamps edge weights into [0, 1], so extending a
// path never raises its total and best-first order is exact.
func (t *Traverser) weighted(start []*path, opts TraversalOptions) []*path {
	return t.bestFirst(start, opts, func(p *path) float64 { return p.weight })
}

// centrality expands the most central frontier node first.
func (t *Traverser) centrality(start []*path, opts TraversalOptions) []*path {
	if !t.graph.CentralityComputed() {
		t.logger.Debug("Computing centrality before centrality traversal")
		t.graph.CalculateCentralityScores()
	}
	return t.bestFirst(start, opts, func(p *path) float64 {
		return t.graph.GetNode(p.last()).CentralityScore
	})
}

const (
	semanticTextWeight    = 0.6
	semanticKeywordWeight = 0.4
)

// semantic explores breadth-first and ranks every reached node by how well
// its text surface matches the query.
func (t *Traverser) semantic(ctx context.Context, start []*path, opts TraversalOptions) ([]*types.TraversalResult, error) {
	paths := t.breadthFirst(start, opts)

	query := opts.Query
	queryText := query.Query
	if queryText == "" {
		queryText = strings.Join(query.Keywords, " ")
	}
	keywords := utils.UniqueStrings(query.Keywords)
	for _, e := range query.Entities {
		keywords = append(keywords, e.Text)
	}
	keywords = utils.UniqueStrings(keywords)

	results := make([]*types.TraversalResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := t.graph.GetNode(p.last())
		surface := nodeSurface(node)

		var textScore float64
		if t.scorer != nil && queryText != "" {
			score, err := t.scorer.TextSimilarity(ctx, queryText, surface)
			if err != nil {
				t.logger.Debug("Text similarity failed, scoring keywords only", "node", node.ID, "error", err)
			} else {
				textScore = utils.Clamp(score, 0, 1)
			}
		}
		keywordScore := keywordCoverage(keywords, surface)

		results = append(results, t.toResult(p, utils.Clamp(semanticTextWeight*textScore+semanticKeywordWeight*keywordScore, 0, 1)))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SemanticScore != results[j].SemanticScore {
			return results[i].SemanticScore > results[j].SemanticScore
		}
		return results[i].HopCount < results[j].HopCount
	})
	return truncate(results, opts.MaxResults), nil
}

func nodeSurface(node *types.GraphNode) string {
	parts := []string{node.Title}
	parts = append(parts, node.Entities...)
	parts = append(parts, node.Topics...)
	parts = append(parts, node.Keywords...)
	if node.Text != "" {
		parts = append(parts, node.Text)
	}
	return strings.Join(parts, " ")
}

// keywordCoverage is the fraction of keywords found in surface.
func keywordCoverage(keywords []string, surface string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(surface)
	hits := 0
	for _, k := range keywords {
		if strings.Contains(lower, utils.NormalizeKey(k)) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func (t *Traverser) toResult(p *path, semanticScore float64) *types.TraversalResult {
	nodes := make([]*types.GraphNode, len(p.nodes))
	for i, id := range p.nodes {
		nodes[i] = t.graph.GetNode(id)
	}

	reasoning := make([]string, 0, len(p.nodes))
	reasoning = append(reasoning, fmt.Sprintf("start at %s %q", nodes[0].NodeType, nodes[0].Title))
	for i, edge := range p.edges {
		from, to := nodes[i], nodes[i+1]
		direction := "->"
		if edge.SourceID != from.ID {
			direction = "<-"
		}
		reasoning = append(reasoning, fmt.Sprintf("%s %s %s %q (weight %.2f)",
			direction, edge.RelationshipType, to.NodeType, to.Title, edge.Weight))
	}

	return &types.TraversalResult{
		Nodes:         nodes,
		Path:          append([]string(nil), p.nodes...),
		TotalWeight:   p.weight,
		SemanticScore: semanticScore,
		HopCount:      len(p.edges),
		ReasoningPath: reasoning,
	}
}
