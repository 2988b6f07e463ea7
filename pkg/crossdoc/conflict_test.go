package crossdoc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

// blockingStore delays or panics on selected ids and serves the rest from
// an in-memory store.
type blockingStore struct {
	*vectorstore.MemoryStore
	slow    map[string]bool
	panics  map[string]bool
	release chan struct{}
}

func (s *blockingStore) GetEmbedding(ctx context.Context, id string) ([]float32, error) {
	if s.panics[id] {
		panic("corrupt index entry")
	}
	if s.slow[id] {
		<-s.release
	}
	return s.MemoryStore.GetEmbedding(ctx, id)
}

func bandStore() *vectorstore.MemoryStore {
	return vectorstore.NewMemoryStore(
		vectorstore.Embedding{DocumentID: "auth-guide", Vector: []float32{1, 0}},
		vectorstore.Embedding{DocumentID: "api-ref", Vector: []float32{0.8, 0.6}},
	)
}

func TestShouldAnalyzeForConflicts(t *testing.T) {
	d := NewConflictDetector(nil, nil, ConflictOptions{}, nil)
	long := &types.SearchResult{ID: "a", Text: "Sessions expire after 30 minutes."}

	assert.True(t, d.ShouldAnalyzeForConflicts(long, &types.SearchResult{ID: "b", Text: "Sessions expire after 60 minutes."}))
	assert.False(t, d.ShouldAnalyzeForConflicts(long, &types.SearchResult{ID: "b", Text: "  short  "}))
	assert.False(t, d.ShouldAnalyzeForConflicts(long, long))
	assert.False(t, d.ShouldAnalyzeForConflicts(long, &types.SearchResult{ID: "b", Text: " Sessions expire after 30 minutes.\n"}))
}

func TestGetTieredAnalysisPairs(t *testing.T) {
	docs := []types.SearchResult{
		{ID: "x", Text: "first document body", Score: 1.5},
		{ID: "y", Text: "second document body", Score: 0.9},
		{ID: "z", Text: "third document body", Score: 0.2},
		{ID: "tiny", Text: "short", Score: 1},
	}
	tiers := NewConflictDetector(nil, nil, ConflictOptions{}, nil).GetTieredAnalysisPairs(docs)

	require.Len(t, tiers.Primary, 1)
	assert.Equal(t, "x", tiers.Primary[0].Doc1ID)
	assert.Equal(t, "y", tiers.Primary[0].Doc2ID)
	assert.InDelta(t, 0.95, tiers.Primary[0].Priority, 1e-9)
	assert.Equal(t, PrimaryTier, tiers.Primary[0].Tier)

	require.Len(t, tiers.Secondary, 2)
	assert.InDelta(t, 0.6, tiers.Secondary[0].Priority, 1e-9)
	assert.InDelta(t, 0.55, tiers.Secondary[1].Priority, 1e-9)
	assert.Empty(t, tiers.Tertiary)
	assert.Len(t, tiers.All, 3)
}

func TestDetectConflictsFindsDisagreeingDurations(t *testing.T) {
	d := NewConflictDetector(bandStore(), nil, ConflictOptions{}, nil)

	analysis := d.DetectConflicts(context.Background(), tokenExpiryDocs())
	require.Len(t, analysis.ConflictingPairs, 1)
	pair := analysis.ConflictingPairs[0]
	assert.Equal(t, "auth-guide", pair.Doc1ID)
	assert.Equal(t, "api-ref", pair.Doc2ID)
	assert.Equal(t, "duration", pair.Info.Type)
	assert.InDelta(t, 0.7, pair.Info.Confidence, 1e-9)
	assert.InDelta(t, 0.8, pair.Info.VectorSimilarity, 1e-6)
	assert.Equal(t, PrimaryTier, pair.Info.Tier)
	assert.Equal(t, []ValueConflict{{Category: "duration", Subject: "token expiry", Value1: "24 hours", Value2: "4 hours"}}, pair.Info.Conflicts)

	assert.Equal(t, []DocumentIDPair{{Doc1ID: "auth-guide", Doc2ID: "api-ref"}}, analysis.ConflictCategories["duration"])
	assert.Contains(t, analysis.ResolutionSuggestions["auth-guide vs api-ref"], "auth-guide states 24 hours")
	assert.Equal(t, 1, analysis.PairsConsidered)
	assert.Equal(t, 1, analysis.PairsCompared)

	summary := analysis.GetConflictSummary()
	assert.Equal(t, 1, summary.TotalConflicts)
	assert.Equal(t, map[string]int{"duration": 1}, summary.CategoryCounts)
	assert.Equal(t, []string{"duration"}, summary.MostCommonCategories)
	assert.Len(t, summary.ResolutionSuggestions, 1)

	assert.Equal(t, []string{"api-ref"}, analysis.Involving("auth-guide"))
	assert.Equal(t, []string{"auth-guide"}, analysis.Involving("api-ref"))
	assert.Empty(t, analysis.Involving("other"))
}

func TestDetectConflictsWithoutStoreSkipsBanding(t *testing.T) {
	analysis := NewConflictDetector(nil, nil, ConflictOptions{}, nil).DetectConflicts(context.Background(), tokenExpiryDocs())
	require.Len(t, analysis.ConflictingPairs, 1)
	assert.Equal(t, 0.0, analysis.ConflictingPairs[0].Info.VectorSimilarity)
}

func TestDetectConflictsIgnoresEquivalentValues(t *testing.T) {
	docs := []types.SearchResult{
		{ID: "a", Text: "Token expiry is 1 day for every client.", Score: 0.9},
		{ID: "b", Text: "Token expiry is 24 hours; refresh before then.", Score: 0.9},
		{ID: "c", Text: "Upload limit is 10 MB per file.", Score: 0.9},
	}
	analysis := NewConflictDetector(nil, nil, ConflictOptions{}, nil).DetectConflicts(context.Background(), docs)
	assert.Empty(t, analysis.ConflictingPairs)
	assert.Equal(t, 3, analysis.PairsCompared)

	summary := analysis.GetConflictSummary()
	assert.Equal(t, 0, summary.TotalConflicts)
	assert.NotNil(t, summary.CategoryCounts)
	assert.NotNil(t, summary.MostCommonCategories)
	assert.NotNil(t, summary.ResolutionSuggestions)
}

func TestDetectConflictsOutsideVectorBand(t *testing.T) {
	tests := []struct {
		name  string
		store *vectorstore.MemoryStore
	}{
		{
			name: "near identical vectors",
			store: vectorstore.NewMemoryStore(
				vectorstore.Embedding{DocumentID: "auth-guide", Vector: []float32{1, 0}},
				vectorstore.Embedding{DocumentID: "api-ref", Vector: []float32{1, 0}},
			),
		},
		{
			name: "unrelated vectors",
			store: vectorstore.NewMemoryStore(
				vectorstore.Embedding{DocumentID: "auth-guide", Vector: []float32{1, 0}},
				vectorstore.Embedding{DocumentID: "api-ref", Vector: []float32{0, 1}},
			),
		},
		{
			name: "missing embedding",
			store: vectorstore.NewMemoryStore(
				vectorstore.Embedding{DocumentID: "auth-guide", Vector: []float32{1, 0}},
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := NewConflictDetector(tt.store, nil, ConflictOptions{}, nil).DetectConflicts(context.Background(), tokenExpiryDocs())
			assert.Empty(t, analysis.ConflictingPairs)
			assert.Equal(t, 1, analysis.PairsConsidered)
			assert.Equal(t, 0, analysis.PairsCompared)
		})
	}
}

func TestFetchEmbeddingsSettlesEveryFetch(t *testing.T) {
	ids := []string{"d1", "d2", "d3", "d4", "d5"}
	var seeded []vectorstore.Embedding
	for i, id := range ids {
		seeded = append(seeded, vectorstore.Embedding{DocumentID: id, Vector: []float32{float32(i + 1), 1}})
	}
	store := &blockingStore{
		MemoryStore: vectorstore.NewMemoryStore(seeded...),
		slow:        map[string]bool{"d3": true},
		release:     make(chan struct{}),
	}
	t.Cleanup(func() { close(store.release) })

	d := NewConflictDetector(store, nil, ConflictOptions{FetchTimeout: 50 * time.Millisecond, MaxConcurrentFetches: 2}, nil)
	start := time.Now()
	embeddings := d.FetchEmbeddings(context.Background(), ids)

	assert.Len(t, embeddings, 4)
	assert.NotContains(t, embeddings, "d3")
	assert.Equal(t, []float32{5, 1}, embeddings["d5"])
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchEmbeddingsSurvivesPanickingStore(t *testing.T) {
	store := &blockingStore{
		MemoryStore: bandStore(),
		panics:      map[string]bool{"api-ref": true},
	}
	d := NewConflictDetector(store, nil, ConflictOptions{}, nil)

	embeddings := d.FetchEmbeddings(context.Background(), []string{"auth-guide", "api-ref", "missing"})
	assert.Equal(t, map[string][]float32{"auth-guide": {1, 0}}, embeddings)

	assert.Empty(t, NewConflictDetector(nil, nil, ConflictOptions{}, nil).FetchEmbeddings(context.Background(), []string{"auth-guide"}))
}

func TestFilterByVectorSimilarityOrdersByVector(t *testing.T) {
	docs := []types.SearchResult{
		{ID: "a", Text: "alpha document body"},
		{ID: "b", Text: "bravo document body"},
		{ID: "c", Text: "charlie document body"},
	}
	store := vectorstore.NewMemoryStore(
		vectorstore.Embedding{DocumentID: "a", Vector: []float32{1, 0}},
		vectorstore.Embedding{DocumentID: "b", Vector: []float32{0.8, 0.6}},
		vectorstore.Embedding{DocumentID: "c", Vector: []float32{0.9, 0.43588989}},
	)
	d := NewConflictDetector(store, nil, ConflictOptions{}, nil)

	kept := d.FilterByVectorSimilarity(context.Background(), d.GetTieredAnalysisPairs(docs).All)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].Doc1ID)
	assert.Equal(t, "c", kept[0].Doc2ID)
	assert.Equal(t, "a", kept[1].Doc1ID)
	assert.Equal(t, "b", kept[1].Doc2ID)
}

func TestDetectConflictsUsesExtractorEntities(t *testing.T) {
	docs := []types.SearchResult{
		{ID: "one", Text: "The default replica count is three.", Score: 0.9},
		{ID: "two", Text: "The default replica count is five.", Score: 0.9},
	}
	extractor := stubAnalyzer{entities: map[string][]types.Entity{
		docs[0].Text: {{Text: "three", Label: "QUANTITY"}},
		docs[1].Text: {{Text: "five", Label: "QUANTITY"}},
	}}
	analysis := NewConflictDetector(nil, extractor, ConflictOptions{}, nil).DetectConflicts(context.Background(), docs)

	// Spelled-out numbers do not parse as values, so nothing is compared.
	assert.Empty(t, analysis.ConflictingPairs)
	assert.Equal(t, 1, analysis.PairsCompared)
}

func TestDetectConflictsRepeatedValueUnderTwoSubjects(t *testing.T) {
	docs := []types.SearchResult{
		{ID: "a", Text: "Session timeout is 2 hours. Token expiry is 2 hours.", Score: 0.9},
		{ID: "b", Text: "Token expiry is 8 hours.", Score: 0.9},
	}
	analysis := NewConflictDetector(nil, nil, ConflictOptions{}, nil).DetectConflicts(context.Background(), docs)

	require.Len(t, analysis.ConflictingPairs, 1)
	assert.Equal(t, []ValueConflict{{Category: "duration", Subject: "token expiry", Value1: "2 hours", Value2: "8 hours"}},
		analysis.ConflictingPairs[0].Info.Conflicts)
}

func TestValueMentionsKeepsEachOccurrence(t *testing.T) {
	doc := types.SearchResult{
		ID:       "a",
		Text:     "Session timeout is 2 hours. Token expiry is 2 hours.",
		Entities: []types.Entity{{Text: "2 hours", Label: "DURATION"}},
	}
	mentions := NewConflictDetector(nil, nil, ConflictOptions{}, nil).valueMentions(context.Background(), &doc)

	labels := make([]string, len(mentions))
	for i, m := range mentions {
		labels[i] = m.label
	}
	assert.Equal(t, []string{"session timeout", "token expiry"}, labels)
}

func TestNextUnusedOccurrence(t *testing.T) {
	text := "limit is 5 mb. quota is 5 mb."
	used := map[int]struct{}{}

	first := nextUnusedOccurrence(text, "5 mb", used)
	assert.Equal(t, 9, first)
	used[first] = struct{}{}
	assert.Equal(t, 24, nextUnusedOccurrence(text, "5 mb", used))
	used[24] = struct{}{}
	assert.Equal(t, -1, nextUnusedOccurrence(text, "5 mb", used))
	assert.Equal(t, -1, nextUnusedOccurrence(text, "", used))
}
