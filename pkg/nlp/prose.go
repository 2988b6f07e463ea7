package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// ProseAnalyzer implements Analyzer with the prose tokenizer, part-of-speech
// tagger and named-entity recognizer, plus regex value extraction and
// lexical similarity.
type ProseAnalyzer struct {
	LexicalSimilarity
	namedEntities bool
	logger        *slog.Logger
}

// ProseOption configures a ProseAnalyzer.
type ProseOption func(*ProseAnalyzer)

// WithNamedEntities toggles prose's named-entity model. Value entities are
// always extracted.
func WithNamedEntities(enabled bool) ProseOption {
	return func(p *ProseAnalyzer) { p.namedEntities = enabled }
}

// NewProseAnalyzer creates an analyzer. A nil logger uses slog.Default().
func NewProseAnalyzer(logger *slog.Logger, opts ...ProseOption) *ProseAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &ProseAnalyzer{namedEntities: true, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractEntities returns value entities followed by named entities.
func (p *ProseAnalyzer) ExtractEntities(ctx context.Context, text string) ([]types.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entities := ExtractValueEntities(text)
	if !p.namedEntities || strings.TrimSpace(text) == "" {
		return entities, nil
	}

	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		p.logger.Warn("Named entity extraction failed, keeping value entities", "error", err)
		return entities, nil
	}
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		seen[strings.ToLower(e.Text)] = struct{}{}
	}
	for _, ent := range doc.Entities() {
		key := strings.ToLower(ent.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entities = append(entities, types.Entity{Text: ent.Text, Label: ent.Label})
	}
	return entities, nil
}

var questionStarters = map[string]struct{}{
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"is": {}, "are": {}, "can": {}, "does": {}, "do": {}, "should": {}, "could": {}, "will": {},
}

// AnalyzeQuery tags the query and keeps nouns, verbs, adjectives, numbers
// and foreign words as keywords.
func (p *ProseAnalyzer) AnalyzeQuery(ctx context.Context, query string) (*QueryAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	doc, err := prose.NewDocument(query, prose.WithExtraction(false))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze query: %w", err)
	}

	tokens := doc.Tokens()
	var keywords []string
	conjunctions := 0
	for _, tok := range tokens {
		word := strings.ToLower(tok.Text)
		if tok.Tag == "CC" {
			conjunctions++
		}
		if !isKeywordTag(tok.Tag) || utils.IsStopWord(word) || len(word) < 2 {
			continue
		}
		keywords = append(keywords, word)
	}
	if len(keywords) == 0 {
		keywords = utils.ContentWords(query)
	}

	entities, err := p.ExtractEntities(ctx, query)
	if err != nil {
		return nil, err
	}

	analysis := &QueryAnalysis{
		Query:      query,
		Keywords:   utils.UniqueStrings(keywords),
		Entities:   entities,
		IsQuestion: strings.HasSuffix(query, "?"),
	}
	if len(tokens) > 0 {
		first := strings.ToLower(tokens[0].Text)
		if _, ok := questionStarters[first]; ok || strings.HasPrefix(tokens[0].Tag, "W") {
			analysis.IsQuestion = true
		}
	}

	sentences := len(doc.Sentences())
	if sentences == 0 {
		sentences = 1
	}
	analysis.Complexity = utils.Clamp(float64(len(tokens))/30+0.15*float64(sentences-1)+0.1*float64(conjunctions), 0, 1)
	return analysis, nil
}

func isKeywordTag(tag string) bool {
	for _, prefix := range []string{"NN", "VB", "JJ", "CD", "FW"} {
		if strings.HasPrefix(tag, prefix) {
			return true
		}
	}
	return false
}
