package crossdoc

import (
	"context"
	"strings"

	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
)

// scorerFunc adapts a plain function to nlp.TextSimilarityScorer.
type scorerFunc func(a, b string) (float64, error)

func (f scorerFunc) TextSimilarity(_ context.Context, a, b string) (float64, error) {
	return f(a, b)
}

func constScorer(score float64) scorerFunc {
	return func(string, string) (float64, error) { return score, nil }
}

// stubAnalyzer is a deterministic nlp.Analyzer.
type stubAnalyzer struct {
	scorerFunc
	entities map[string][]types.Entity
}

func (s stubAnalyzer) ExtractEntities(_ context.Context, text string) ([]types.Entity, error) {
	return s.entities[text], nil
}

func (s stubAnalyzer) AnalyzeQuery(_ context.Context, query string) (*nlp.QueryAnalysis, error) {
	return &nlp.QueryAnalysis{Query: query, Keywords: strings.Fields(strings.ToLower(query))}, nil
}

func entities(texts ...string) []types.Entity {
	out := make([]types.Entity, len(texts))
	for i, t := range texts {
		out[i] = types.Entity{Text: t}
	}
	return out
}

func topics(texts ...string) []types.Topic {
	out := make([]types.Topic, len(texts))
	for i, t := range texts {
		out[i] = types.Topic{Text: t}
	}
	return out
}

// oauthDocs returns A and B, which share OAuth and authentication, and C,
// which shares nothing with them.
func oauthDocs() []types.SearchResult {
	return []types.SearchResult{
		{ID: "A", Text: "OAuth login flow for the web app", Score: 0.9, Entities: entities("OAuth"), Topics: topics("authentication")},
		{ID: "B", Text: "Refreshing OAuth tokens safely", Score: 0.8, Entities: entities("OAuth"), Topics: topics("authentication")},
		{ID: "C", Text: "Invoices are generated monthly", Score: 0.3, Entities: entities("Stripe"), Topics: topics("billing")},
	}
}

// tokenExpiryDocs returns two documents that disagree on token expiry.
func tokenExpiryDocs() []types.SearchResult {
	return []types.SearchResult{
		{ID: "auth-guide", Text: "token expiry: 24 hours", Score: 0.9},
		{ID: "api-ref", Text: "token expiry: 4 hours", Score: 0.8},
	}
}
