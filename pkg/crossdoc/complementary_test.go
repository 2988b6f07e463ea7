package crossdoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/types"
)

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		name string
		doc  types.SearchResult
		want DocumentRole
	}{
		{"tutorial title", types.SearchResult{SourceTitle: "Getting Started Guide"}, RoleTutorial},
		{"reference source type", types.SearchResult{SourceType: "api_reference"}, RoleReference},
		{"troubleshooting wins over guide", types.SearchResult{SourceTitle: "Troubleshooting guide"}, RoleTroubleshooting},
		{"example breadcrumb", types.SearchResult{Breadcrumb: "Docs > Examples > Webhooks"}, RoleExample},
		{"overview section", types.SearchResult{SectionTitle: "Architecture overview"}, RoleOverview},
		{"marker must start a word", types.SearchResult{SourceTitle: "Rapid deployment"}, RoleUnknown},
		{"nothing to go on", types.SearchResult{ID: "x"}, RoleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRole(&tt.doc))
		})
	}
}

// roleDocs returns a tutorial target T and candidates: a reference R and a
// tutorial S at moderate similarity, a near-duplicate D and an unrelated U.
func roleDocs() (types.SearchResult, []types.SearchResult, *SimilarityCalculator) {
	target := types.SearchResult{ID: "T", SourceTitle: "Webhooks tutorial", Text: "target text"}
	candidates := []types.SearchResult{
		target,
		{ID: "U", SourceTitle: "Billing reference", Text: "unrelated text"},
		{ID: "D", SourceTitle: "Webhooks tutorial copy", Text: "duplicate text"},
		{ID: "S", SourceTitle: "Another tutorial", Text: "sibling text"},
		{ID: "R", SourceTitle: "Webhook API reference", Text: "reference text"},
	}
	semantic := map[string]float64{
		"unrelated text": 0.05,
		"duplicate text": 1.0,
		"sibling text":   0.4,
		"reference text": 0.4,
	}
	scorer := scorerFunc(func(a, b string) (float64, error) {
		if s, ok := semantic[b]; ok {
			return s, nil
		}
		return semantic[a], nil
	})
	calc := NewSimilarityCalculator(scorer, SimilarityWeights{Semantic: 1}, ClassificationThresholds{}, nil)
	return target, candidates, calc
}

func TestFindComplementaryContent(t *testing.T) {
	target, candidates, calc := roleDocs()
	finder := NewComplementaryFinder(calc, ComplementaryOptions{}, nil)

	content := finder.FindComplementaryContent(context.Background(), &target, candidates, 5)
	assert.Equal(t, "T", content.TargetDocID)
	assert.Equal(t, RecommendationStrategy, content.RecommendationStrategy)
	assert.False(t, content.GeneratedAt.IsZero())
	require.Equal(t, []string{"R", "S", "D"}, content.DocumentIDs())

	r, s, d := content.Recommendations[0], content.Recommendations[1], content.Recommendations[2]
	assert.InDelta(t, 0.6, r.Score, 1e-9)
	assert.Equal(t, RoleReference, r.Role)
	assert.Equal(t, Complementary, r.RelationshipType)
	assert.Contains(t, r.Reason, "Complements tutorial with reference content")

	assert.InDelta(t, 0.4, s.Score, 1e-9)
	assert.Equal(t, RoleTutorial, s.Role)
	assert.NotEqual(t, Complementary, s.RelationshipType)

	assert.InDelta(t, 0.3, d.Score, 1e-9)
	assert.Equal(t, "Near duplicate (similarity 1.00)", d.Reason)

	top := finder.FindComplementaryContent(context.Background(), &target, candidates, 1)
	assert.Equal(t, []string{"R"}, top.DocumentIDs())
}

func TestFindComplementaryContentWithoutCandidates(t *testing.T) {
	target, _, calc := roleDocs()
	finder := NewComplementaryFinder(calc, ComplementaryOptions{}, nil)

	content := finder.FindComplementaryContent(context.Background(), &target, nil, 3)
	assert.NotNil(t, content.Recommendations)
	assert.Empty(t, content.Recommendations)

	content = finder.FindComplementaryContent(context.Background(), &target, []types.SearchResult{target}, 3)
	assert.Empty(t, content.Recommendations)
}

func TestComplementaryFromMatrixMatchesDirectRanking(t *testing.T) {
	target, candidates, calc := roleDocs()
	finder := NewComplementaryFinder(calc, ComplementaryOptions{}, nil)

	m := calc.CalculateMatrix(context.Background(), candidates)
	fromMatrix := finder.complementaryFromMatrix(m, m.IndexOf("T"), 3)
	direct := finder.FindComplementaryContent(context.Background(), &target, candidates, 3)
	assert.Equal(t, direct.DocumentIDs(), fromMatrix.DocumentIDs())
}
