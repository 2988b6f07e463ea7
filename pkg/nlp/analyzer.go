package nlp

import (
	"context"

	"github.com/soundprediction/docgraph/pkg/types"
)

// TextSimilarityScorer scores how semantically close two texts are.
// Implementations return values in [-1, 1]; callers clamp as needed.
type TextSimilarityScorer interface {
	TextSimilarity(ctx context.Context, a, b string) (float64, error)
}

// EntityExtractor finds named and value entities in text.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]types.Entity, error)
}

// QueryAnalyzer derives keywords and linguistic features from a query.
type QueryAnalyzer interface {
	AnalyzeQuery(ctx context.Context, query string) (*QueryAnalysis, error)
}

// Analyzer is the full NLP capability consumed by the engine.
type Analyzer interface {
	TextSimilarityScorer
	EntityExtractor
	QueryAnalyzer
}

// QueryAnalysis describes a search query.
type QueryAnalysis struct {
	Query      string         `json:"query"`
	Keywords   []string       `json:"keywords"`
	Entities   []types.Entity `json:"entities,omitempty"`
	IsQuestion bool           `json:"is_question"`
	// Complexity is in [0, 1]; longer, multi-clause queries score higher.
	Complexity float64 `json:"complexity"`
}

type composite struct {
	TextSimilarityScorer
	EntityExtractor
	QueryAnalyzer
}

// Compose assembles an Analyzer from independent parts.
func Compose(sim TextSimilarityScorer, ext EntityExtractor, qa QueryAnalyzer) Analyzer {
	return composite{TextSimilarityScorer: sim, EntityExtractor: ext, QueryAnalyzer: qa}
}

// MergedExtractor runs several extractors and concatenates their entities,
// dropping duplicates by text and label.
type MergedExtractor []EntityExtractor

// ExtractEntities implements EntityExtractor.
func (m MergedExtractor) ExtractEntities(ctx context.Context, text string) ([]types.Entity, error) {
	seen := make(map[types.Entity]struct{})
	var out []types.Entity
	for _, ext := range m {
		ents, err := ext.ExtractEntities(ctx, text)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out, nil
}
