package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
)

func assertAcyclic(t *testing.T, results []*types.TraversalResult) {
	t.Helper()
	for _, r := range results {
		seen := make(map[string]struct{}, len(r.Path))
		for _, id := range r.Path {
			_, dup := seen[id]
			require.False(t, dup, "node %s repeated in path %v", id, r.Path)
			seen[id] = struct{}{}
		}
		assert.Equal(t, len(r.Path)-1, r.HopCount)
		assert.Len(t, r.Nodes, len(r.Path))
		assert.Len(t, r.ReasoningPath, len(r.Path))
	}
}

func targets(results []*types.TraversalResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Target().ID)
	}
	return out
}

func TestTraverseBreadthFirst(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	results, err := tr.Traverse(context.Background(), []string{"doc:auth-guide"}, TraversalOptions{Strategy: BreadthFirst, MaxHops: 1, MaxResults: 50})
	require.NoError(t, err)
	assertAcyclic(t, results)

	assert.Equal(t, []string{"doc:auth-guide", "doc:api-ref", "section:a1", "section:a2"}, targets(results))
	assert.Equal(t, 0, results[0].HopCount)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].HopCount, results[i-1].HopCount)
	}
	assert.Equal(t, `start at document "Auth Guide"`, results[0].ReasoningPath[0])
	assert.Equal(t, `-> contains section "Refreshing tokens" (weight 1.00)`, results[3].ReasoningPath[1])
}

func TestTraverseZeroHopsReturnsSeeds(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	results, err := tr.Traverse(context.Background(), []string{"entity:oauth", "missing", "entity:oauth"}, TraversalOptions{MaxHops: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"entity:oauth"}, targets(results))
}

func TestTraverseMinWeightIsRespected(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	for _, strategy := range []Strategy{BreadthFirst, Weighted, Centrality} {
		t.Run(string(strategy), func(t *testing.T) {
			results, err := tr.Traverse(context.Background(), []string{"doc:auth-guide"}, TraversalOptions{Strategy: strategy, MaxHops: 3, MinWeight: 0.95})
			require.NoError(t, err)
			assertAcyclic(t, results)
			assert.ElementsMatch(t, []string{"doc:auth-guide", "section:a1", "section:a2", "doc:api-ref", "section:b1"}, targets(results))
		})
	}
}

func TestTraverseWeightedOrdering(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	results, err := tr.Traverse(context.Background(), []string{"section:a2"}, TraversalOptions{Strategy: Weighted, MaxHops: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assertAcyclic(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].TotalWeight, results[i].TotalWeight)
	}
	assert.Equal(t, "section:a2", results[0].Target().ID)
	assert.Equal(t, 1.0, results[0].TotalWeight)
}

func TestTraverseMinimumCombination(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	results, err := tr.Traverse(context.Background(), []string{"section:a2"}, TraversalOptions{Strategy: Weighted, MaxHops: 2, Combination: CombineMinimum})
	require.NoError(t, err)

	for _, r := range results {
		if r.Target().ID == "section:a1" {
			// The route through the document keeps weight 1; the direct parent edge is 0.9.
			assert.Equal(t, 1.0, r.TotalWeight)
			assert.Equal(t, 2, r.HopCount)
			return
		}
	}
	t.Fatal("section:a1 not reached")
}

func TestTraverseSemantic(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	_, err := tr.Traverse(context.Background(), []string{"entity:jwt"}, TraversalOptions{Strategy: Semantic})
	assert.ErrorIs(t, err, ErrQueryRequired)

	query := &nlp.QueryAnalysis{Query: "refresh oauth tokens", Keywords: []string{"refresh", "tokens"}}
	results, err := tr.Traverse(context.Background(), []string{"entity:oauth"}, TraversalOptions{Strategy: Semantic, MaxHops: 2, Query: query})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assertAcyclic(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].SemanticScore, results[i].SemanticScore)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.SemanticScore, 0.0)
	}
	assert.Equal(t, "section:a2", results[0].Target().ID)
}

func TestTraverseSemanticUsesScorer(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nlp.LexicalSimilarity{}, nil)

	query := &nlp.QueryAnalysis{Query: "invoices stripe billing"}
	results, err := tr.Traverse(context.Background(), []string{"doc:billing"}, TraversalOptions{Strategy: Semantic, MaxHops: 1, Query: query})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "section:c1", results[0].Target().ID)
	assert.Greater(t, results[0].SemanticScore, 0.0)
}

func TestTraverseCentralityComputesScores(t *testing.T) {
	g := buildSample(t)
	require.False(t, g.CentralityComputed())
	tr := NewTraverser(g, nil, nil)

	results, err := tr.Traverse(context.Background(), []string{"topic:authentication"}, TraversalOptions{Strategy: Centrality, MaxHops: 2, MaxResults: 4})
	require.NoError(t, err)
	assert.True(t, g.CentralityComputed())
	assert.Len(t, results, 4)
	assertAcyclic(t, results)
	assert.Equal(t, "topic:authentication", results[0].Target().ID)
}

func TestTraverseMaxResultsAndHops(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	results, err := tr.Traverse(context.Background(), []string{"entity:oauth"}, TraversalOptions{MaxHops: 5, MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = tr.Traverse(context.Background(), []string{"entity:oauth"}, TraversalOptions{MaxHops: 2, MaxResults: 100})
	require.NoError(t, err)
	for _, r := range results {
		assert.LessOrEqual(t, r.HopCount, 2)
	}
}

func TestTraverseRejectsUnknownOptions(t *testing.T) {
	g := buildSample(t)
	tr := NewTraverser(g, nil, nil)

	_, err := tr.Traverse(context.Background(), []string{"entity:oauth"}, TraversalOptions{Strategy: "random_walk"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = tr.Traverse(context.Background(), []string{"entity:oauth"}, TraversalOptions{Combination: "sum"})
	assert.ErrorIs(t, err, ErrUnknownCombination)
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"bfs", BreadthFirst},
		{"Breadth_First", BreadthFirst},
		{"weighted", Weighted},
		{" semantic ", Semantic},
		{"centrality", Centrality},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseStrategy("dfs")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestTraverseWeightedClampsHeavyEdges(t *testing.T) {
	g := NewKnowledgeGraph(nil)
	for _, id := range []string{"s", "x", "y"} {
		require.True(t, g.AddNode(&types.GraphNode{ID: id, NodeType: types.SectionNodeType, Title: id}))
	}
	for _, e := range []*types.GraphEdge{
		{SourceID: "s", TargetID: "x", RelationshipType: types.RelatesToRelationship, Weight: 0.9},
		{SourceID: "s", TargetID: "y", RelationshipType: types.RelatesToRelationship, Weight: 0.5},
		{SourceID: "y", TargetID: "x", RelationshipType: types.RelatesToRelationship, Weight: 3.0},
	} {
		require.True(t, g.AddEdge(e))
	}
	tr := NewTraverser(g, nil, nil)

	for _, combine := range []WeightCombination{CombineProduct, CombineMinimum} {
		t.Run(string(combine), func(t *testing.T) {
			results, err := tr.Traverse(context.Background(), []string{"s"}, TraversalOptions{Strategy: Weighted, MaxHops: 3, Combination: combine})
			require.NoError(t, err)
			require.Len(t, results, 3)

			byTarget := make(map[string]*types.TraversalResult, len(results))
			for i, r := range results {
				assert.LessOrEqual(t, r.TotalWeight, 1.0)
				if i > 0 {
					assert.GreaterOrEqual(t, results[i-1].TotalWeight, r.TotalWeight)
				}
				byTarget[r.Target().ID] = r
			}
			assert.Equal(t, []string{"s", "x"}, byTarget["x"].Path)
			assert.InDelta(t, 0.9, byTarget["x"].TotalWeight, 1e-9)
			assert.InDelta(t, 0.9, byTarget["y"].TotalWeight, 1e-9)
		})
	}
}
