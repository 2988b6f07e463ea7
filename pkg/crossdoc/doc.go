// Package crossdoc analyzes how the documents of a retrieval batch relate to
// one another.
//
// The Engine combines five analyzers over a shared similarity matrix:
//
//	engine := crossdoc.NewEngine(analyzer, store, crossdoc.DefaultConfig(), logger)
//	report := engine.AnalyzeDocumentRelationships(ctx, results)
//
// SimilarityCalculator scores pairs from entity overlap, topic overlap,
// metadata and semantic similarity. ClusterAnalyzer groups documents,
// CitationAnalyzer builds a directed citation network and scores it with
// HITS and PageRank, ComplementaryFinder recommends documents that fill gaps
// for a target, and ConflictDetector finds documents stating different
// values for the same subject.
//
// Every analyzer degrades rather than fails: a broken similarity model scores
// 0, an embedding fetch that errors or times out drops its pair, and a
// citation network without edges falls back to degree centrality.
package crossdoc
