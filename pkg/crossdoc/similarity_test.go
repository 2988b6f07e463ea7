package crossdoc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/types"
)

func TestCalculateSimilarity(t *testing.T) {
	calc := NewSimilarityCalculator(constScorer(0.5), SimilarityWeights{}, ClassificationThresholds{}, nil)
	a := &types.SearchResult{
		ID: "a", Text: "OAuth tokens authenticate API clients", ProjectName: "auth", SourceType: "guide",
		Breadcrumb: "Docs > Auth > Tokens", Entities: entities("OAuth", "JWT"), Topics: topics("authentication"),
	}
	b := &types.SearchResult{
		ID: "b", Text: "Scopes limit what an OAuth client may do", ProjectName: "Auth", SourceType: "Guide",
		Breadcrumb: "Docs > Auth > Scopes", Entities: entities("oauth"), Topics: topics("authentication", "authorization"),
	}

	sim := calc.CalculateSimilarity(context.Background(), a, b)
	assert.Equal(t, "a", sim.Doc1ID)
	assert.Equal(t, "b", sim.Doc2ID)
	assert.InDelta(t, 0.5, sim.MetricScores[MetricEntityOverlap], 1e-9)
	assert.InDelta(t, 0.5, sim.MetricScores[MetricTopicOverlap], 1e-9)
	assert.InDelta(t, 0.5+0.3+0.2*2.0/3.0, sim.MetricScores[MetricMetadata], 1e-9)
	assert.InDelta(t, 0.5, sim.MetricScores[MetricSemantic], 1e-9)
	assert.InDelta(t, 0.125+0.125+0.2*(0.8+0.4/3.0)+0.15, sim.SimilarityScore, 1e-9)
	assert.Equal(t, []string{"oauth"}, sim.SharedEntities)
	assert.Equal(t, []string{"authentication"}, sim.SharedTopics)
	assert.Equal(t, TopicalGrouping, sim.RelationshipType)
	assert.Equal(t, "shared entities: oauth; shared topics: authentication; strongest signal: metadata (0.93)", sim.Explanation())

	data, err := json.Marshal(sim)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sim.Explanation(), decoded["explanation"])
	assert.Contains(t, decoded, "metric_scores")
}

func TestCalculateSimilaritySelfAndEmpty(t *testing.T) {
	calc := NewSimilarityCalculator(constScorer(0.1), DefaultSimilarityWeights(), DefaultClassificationThresholds(), nil)
	doc := &oauthDocs()[0]

	self := calc.CalculateSimilarity(context.Background(), doc, doc)
	assert.Equal(t, 1.0, self.SimilarityScore)
	assert.NotEqual(t, Conflicting, self.RelationshipType)

	empty := &types.SearchResult{ID: "empty", Text: "   "}
	sim := calc.CalculateSimilarity(context.Background(), doc, empty)
	assert.Equal(t, 0.0, sim.SimilarityScore)
	assert.Equal(t, "No comparable text", sim.Explanation())
}

func TestSemanticScoreIsClampedAndErrorsDegrade(t *testing.T) {
	a := &types.SearchResult{ID: "a", Text: "first document text"}
	b := &types.SearchResult{ID: "b", Text: "second document text"}

	negative := NewSimilarityCalculator(constScorer(-0.4), SimilarityWeights{}, ClassificationThresholds{}, nil)
	assert.Equal(t, 0.0, negative.CalculateSimilarity(context.Background(), a, b).MetricScores[MetricSemantic])

	failing := NewSimilarityCalculator(scorerFunc(func(string, string) (float64, error) {
		return 0, errors.New("model unavailable")
	}), SimilarityWeights{}, ClassificationThresholds{}, nil)
	sim := failing.CalculateSimilarity(context.Background(), a, b)
	assert.Equal(t, 0.0, sim.SimilarityScore)
	assert.Equal(t, "Semantic similarity", sim.Explanation())

	semanticOnly := NewSimilarityCalculator(constScorer(0.8), SimilarityWeights{Semantic: 1}, ClassificationThresholds{}, nil)
	assert.InDelta(t, 0.8, semanticOnly.CalculateSimilarity(context.Background(), a, b).SimilarityScore, 1e-9)
}

func TestRelationshipClassification(t *testing.T) {
	tests := []struct {
		name     string
		semantic float64
		doc1     types.SearchResult
		doc2     types.SearchResult
		want     RelationshipType
	}{
		{
			name:     "same project with shared entities but different topics",
			semantic: 0.3,
			doc1:     types.SearchResult{ID: "1", Text: "text one here", ProjectName: "p", Entities: entities("x"), Topics: topics("t1")},
			doc2:     types.SearchResult{ID: "2", Text: "text two here", ProjectName: "p", Entities: entities("x"), Topics: topics("t2")},
			want:     ProjectGrouping,
		},
		{
			name:     "shared entities across projects",
			semantic: 0.3,
			doc1:     types.SearchResult{ID: "1", Text: "text one here", ProjectName: "p", Entities: entities("x")},
			doc2:     types.SearchResult{ID: "2", Text: "text two here", ProjectName: "q", Entities: entities("x")},
			want:     TopicalGrouping,
		},
		{
			name:     "semantically close without structure",
			semantic: 0.9,
			doc1:     types.SearchResult{ID: "1", Text: "text one here"},
			doc2:     types.SearchResult{ID: "2", Text: "text two here"},
			want:     SemanticSimilarity,
		},
		{
			name:     "small but nonzero overlap",
			semantic: 0.1,
			doc1:     types.SearchResult{ID: "1", Text: "text one here", Entities: entities("a", "b", "c", "d", "e", "f")},
			doc2:     types.SearchResult{ID: "2", Text: "text two here", Entities: entities("a", "x", "y", "z")},
			want:     CrossReference,
		},
		{
			name:     "nothing in common",
			semantic: 0.1,
			doc1:     types.SearchResult{ID: "1", Text: "text one here"},
			doc2:     types.SearchResult{ID: "2", Text: "text two here"},
			want:     ProjectGrouping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewSimilarityCalculator(constScorer(tt.semantic), SimilarityWeights{}, ClassificationThresholds{}, nil)
			sim := calc.CalculateSimilarity(context.Background(), &tt.doc1, &tt.doc2)
			assert.Equal(t, tt.want, sim.RelationshipType)
		})
	}
}

func TestSimilarityMatrix(t *testing.T) {
	calc := NewSimilarityCalculator(constScorer(0.5), SimilarityWeights{}, ClassificationThresholds{}, nil)
	m := calc.CalculateMatrix(context.Background(), oauthDocs())

	require.Equal(t, 3, m.Len())
	assert.Equal(t, 1, m.IndexOf("B"))
	assert.Equal(t, -1, m.IndexOf("missing"))
	assert.Equal(t, 1.0, m.Score(2, 2))
	assert.Nil(t, m.Pair(1, 1))
	assert.Same(t, m.Pair(0, 1), m.Pair(1, 0))
	assert.InDelta(t, 0.65, m.Score(0, 1), 1e-9)

	pairs := m.Pairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, "A", pairs[0].Doc1ID)
	assert.Equal(t, "B", pairs[0].Doc2ID)
	for i := 1; i < len(pairs); i++ {
		assert.GreaterOrEqual(t, pairs[i-1].SimilarityScore, pairs[i].SimilarityScore)
	}
}
