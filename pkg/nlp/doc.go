// Package nlp provides the language capabilities docgraph relies on:
// text similarity, entity extraction and query analysis.
//
// The Analyzer interface is satisfied by ProseAnalyzer, a self-contained
// implementation on top of github.com/jdkato/prose/v2, and can be assembled
// from narrower parts with Compose:
//
//	sim, err := nlp.NewEmbeddingSimilarity(embedClient, 1024, logger)
//	ner, err := nlp.NewGlinerExtractor("urchade/gliner_small-v2.1", nil, logger)
//	analyzer := nlp.Compose(sim, ner, nlp.NewProseAnalyzer(logger))
//
// # Value entities
//
// ExtractValueEntities recognises durations, sizes, money, percentages and
// versions in free text. ParseValue turns such an entity back into a
// unit-normalised number so that "1 day" and "24 hours" compare equal.
package nlp
