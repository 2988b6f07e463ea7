package main

import (
	"log/slog"

	"github.com/soundprediction/docgraph/pkg/logger"
)

func main() {
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("docgraph coloured logger demo")

	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Info("Analyzed document relationships - green", "documents", 42, "clusters", 5)
	log.Info("Built knowledge graph - green", "nodes", 42, "edges", 156)
	log.Info("Indexed embeddings - green", "count", 42)
	log.Warn("Falling back to degree centrality - yellow")
	log.Error("Embedding fetch failed - red", "doc_id", "auth-guide")
}
