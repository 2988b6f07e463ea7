package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/types"
)

// sampleResults describes three documents: an auth guide and an API
// reference that share OAuth, JWT and authentication, and an unrelated
// billing FAQ.
func sampleResults() []types.SearchResult {
	return []types.SearchResult{
		{
			ID:          "a1",
			DocumentID:  "auth-guide",
			SourceType:  "confluence",
			SourceTitle: "Auth Guide",
			Text:        "OAuth tokens expire after 24 hours. Configure OAuth scopes and JWT signing keys.",
			Score:       0.92,
			Entities:    []types.Entity{{Text: "OAuth", Label: "PRODUCT"}, {Text: "JWT", Label: "PRODUCT"}},
			Topics:      []types.Topic{{Text: "authentication", Score: 0.9}},
			Keywords:    []string{"tokens", "scopes"},
		},
		{
			ID:           "a2",
			DocumentID:   "auth-guide",
			SourceType:   "confluence",
			SourceTitle:  "Auth Guide",
			SectionTitle: "Refreshing tokens",
			ParentID:     "a1",
			Depth:        1,
			Text:         "Refresh tokens with the OAuth refresh flow.",
			Score:        0.81,
			Entities:     []types.Entity{{Text: "oauth"}},
			Topics:       []types.Topic{{Text: "tokens"}},
		},
		{
			ID:          "b1",
			DocumentID:  "api-ref",
			SourceType:  "git",
			SourceTitle: "API Reference",
			Text:        "The API accepts OAuth bearer tokens and validates the JWT audience for authentication.",
			Score:       0.75,
			Entities:    []types.Entity{{Text: "OAuth"}, {Text: "JWT"}},
			Topics:      []types.Topic{{Text: "Authentication"}, {Text: "api"}},
		},
		{
			ID:          "c1",
			DocumentID:  "billing",
			SourceType:  "confluence",
			SourceTitle: "Billing FAQ",
			Text:        "Invoices are issued monthly through Stripe.",
			Score:       0.4,
			Entities:    []types.Entity{{Text: "Stripe"}},
			Topics:      []types.Topic{{Text: "billing"}},
		},
	}
}

func buildSample(t *testing.T) *KnowledgeGraph {
	t.Helper()
	results, dropped := types.NormalizeResults(sampleResults())
	require.Zero(t, dropped)
	return NewBuilder(DefaultBuilderOptions(), nil).Build(results)
}

func TestBuilderCreatesDocumentsAndSections(t *testing.T) {
	g := buildSample(t)

	docs := g.FindNodesByType(types.DocumentNodeType)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc:auth-guide", docs[0].ID)
	assert.Equal(t, "Auth Guide", docs[0].Title)
	assert.ElementsMatch(t, []string{"OAuth", "JWT"}, docs[0].Entities)

	sections := g.FindNodesByType(types.SectionNodeType)
	require.Len(t, sections, 4)

	a2 := g.GetNode("section:a2")
	require.NotNil(t, a2)
	assert.Equal(t, "Refreshing tokens", a2.Title)
	assert.Equal(t, "auth-guide", a2.DocumentID)
	assert.Equal(t, 1, a2.Depth)

	contains := g.GetEdge(types.EdgeKey{SourceID: "doc:auth-guide", TargetID: "section:a1", RelationshipType: types.ContainsRelationship})
	require.NotNil(t, contains)
	assert.Equal(t, 1.0, contains.Weight)

	parent := g.GetEdge(types.EdgeKey{SourceID: "section:a1", TargetID: "section:a2", RelationshipType: types.ContainsRelationship})
	require.NotNil(t, parent)
	assert.Equal(t, 0.9, parent.Weight)
}

func TestBuilderPromotesOnlyCrossDocumentTerms(t *testing.T) {
	g := buildSample(t)

	entities := g.FindNodesByType(types.EntityNodeType)
	require.Len(t, entities, 2)
	assert.Equal(t, "entity:oauth", entities[0].ID)
	assert.Equal(t, "entity:jwt", entities[1].ID)
	assert.Nil(t, g.GetNode("entity:stripe"), "single-document entity stays inline")

	topics := g.FindNodesByType(types.TopicNodeType)
	require.Len(t, topics, 1)
	assert.Equal(t, "topic:authentication", topics[0].ID)
	assert.Nil(t, g.GetNode("topic:tokens"))

	assert.Contains(t, g.GetNode("section:c1").Entities, "Stripe")
}

func TestBuilderMentionWeights(t *testing.T) {
	g := buildSample(t)

	// "oauth" appears twice in a1's text.
	oauth := g.GetEdge(types.EdgeKey{SourceID: "section:a1", TargetID: "entity:oauth", RelationshipType: types.MentionsRelationship})
	require.NotNil(t, oauth)
	assert.InDelta(t, 0.5+0.5*2.0/3.0, oauth.Weight, 1e-9)

	// Topic scores take precedence over text salience.
	topic := g.GetEdge(types.EdgeKey{SourceID: "section:a1", TargetID: "topic:authentication", RelationshipType: types.MentionsRelationship})
	require.NotNil(t, topic)
	assert.InDelta(t, 0.9, topic.Weight, 1e-9)

	for _, e := range g.Edges() {
		assert.GreaterOrEqual(t, e.Weight, 0.0)
		assert.LessOrEqual(t, e.Weight, 1.0)
	}
}

func TestBuilderCoOccurrenceAndSimilarity(t *testing.T) {
	g := buildSample(t)

	stats := g.GetStatistics()
	assert.Equal(t, 10, stats.TotalNodes)
	assert.Equal(t, 16, stats.TotalEdges)
	assert.Equal(t, map[string]int{"contains": 5, "mentions": 7, "co_occurs": 3, "similar_to": 1}, stats.RelationshipTypeCounts)
	assert.Equal(t, 2, stats.ConnectedComponents)

	coOccur := g.GetEdge(types.EdgeKey{SourceID: "entity:jwt", TargetID: "topic:authentication", RelationshipType: types.CoOccursRelationship})
	require.NotNil(t, coOccur)
	assert.InDelta(t, 1.0, coOccur.Weight, 1e-9)

	similar := g.GetEdge(types.EdgeKey{SourceID: "doc:auth-guide", TargetID: "doc:api-ref", RelationshipType: types.SimilarToRelationship})
	require.NotNil(t, similar)
	assert.InDelta(t, 1.0, similar.Weight, 1e-9)
}

func TestBuilderSingleDocumentPromotesNothing(t *testing.T) {
	results, _ := types.NormalizeResults(sampleResults()[:2])
	g := NewBuilder(BuilderOptions{}, nil).Build(results)

	assert.Empty(t, g.FindNodesByType(types.EntityNodeType))
	assert.Empty(t, g.FindNodesByType(types.TopicNodeType))
	assert.Len(t, g.FindNodesByType(types.DocumentNodeType), 1)
}

func TestBuilderEmptyBatch(t *testing.T) {
	g := NewBuilder(DefaultBuilderOptions(), nil).Build(nil)
	assert.Zero(t, g.NodeCount())
	assert.Zero(t, g.EdgeCount())
}
