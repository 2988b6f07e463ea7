package nlp

import (
	"context"
	"math"
	"strings"

	"github.com/soundprediction/docgraph/pkg/utils"
)

// LexicalSimilarity scores texts by cosine similarity of their content-word
// frequency vectors. It needs no model and is deterministic.
type LexicalSimilarity struct{}

// TextSimilarity implements TextSimilarityScorer. The result is in [0, 1].
func (LexicalSimilarity) TextSimilarity(_ context.Context, a, b string) (float64, error) {
	return lexicalCosine(termFrequencies(a), termFrequencies(b)), nil
}

func termFrequencies(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, w := range utils.ContentWords(text) {
		tf[stem(w)]++
	}
	return tf
}

// stem applies a light plural/suffix reduction so "tokens" matches "token".
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "ss"):
		return w
	case len(w) > 3 && strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func lexicalCosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, wa := range a {
		normA += wa * wa
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return utils.Clamp(dot/(math.Sqrt(normA)*math.Sqrt(normB)), 0, 1)
}
