package crossdoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

// RelationshipKind is a relationship FindDocumentRelationships can report.
type RelationshipKind string

const (
	SimilarKind       RelationshipKind = "similar"
	ComplementaryKind RelationshipKind = "complementary"
	ConflictingKind   RelationshipKind = "conflicting"
	CitesKind         RelationshipKind = "cites"
	CitedByKind       RelationshipKind = "cited_by"
	SameClusterKind   RelationshipKind = "same_cluster"
)

// AllRelationshipKinds lists every kind in a stable order.
var AllRelationshipKinds = []RelationshipKind{SimilarKind, ComplementaryKind, ConflictingKind, CitesKind, CitedByKind, SameClusterKind}

// ErrUnknownRelationshipKind is returned for an unrecognised relationship kind.
var ErrUnknownRelationshipKind = errors.New("unknown relationship kind")

// ParseRelationshipKind converts s into a RelationshipKind.
func ParseRelationshipKind(s string) (RelationshipKind, error) {
	kind := RelationshipKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range AllRelationshipKinds {
		if k == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRelationshipKind, s)
}

const (
	defaultMaxRecommendations = 3
	defaultSimilarThreshold   = 0.5
	topPairLimit              = 5
	topDocumentLimit          = 5
)

// Config configures the engine and its analyzers. Zero fields take defaults.
type Config struct {
	Weights    SimilarityWeights        `json:"weights" mapstructure:"weights"`
	Thresholds ClassificationThresholds `json:"thresholds" mapstructure:"thresholds"`

	ClusterStrategy ClusterStrategy `json:"cluster_strategy" mapstructure:"cluster_strategy"`
	MaxClusters     int             `json:"max_clusters" mapstructure:"max_clusters"`
	MinClusterSize  int             `json:"min_cluster_size" mapstructure:"min_cluster_size"`
	Clustering      ClusterOptions  `json:"clustering" mapstructure:"clustering"`

	MaxRecommendations int                  `json:"max_recommendations" mapstructure:"max_recommendations"`
	Complementary      ComplementaryOptions `json:"complementary" mapstructure:"complementary"`

	// SimilarThreshold is the combined score at which documents count as similar.
	SimilarThreshold float64         `json:"similar_threshold" mapstructure:"similar_threshold"`
	Conflict         ConflictOptions `json:"conflict" mapstructure:"conflict"`

	Centrality graph.CentralityOptions `json:"-" mapstructure:"-"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Weights:            DefaultSimilarityWeights(),
		Thresholds:         DefaultClassificationThresholds(),
		ClusterStrategy:    EntityBasedClustering,
		MaxClusters:        defaultMaxClusters,
		MinClusterSize:     defaultMinClusterSize,
		Clustering:         DefaultClusterOptions(),
		MaxRecommendations: defaultMaxRecommendations,
		Complementary:      DefaultComplementaryOptions(),
		SimilarThreshold:   defaultSimilarThreshold,
		Conflict:           DefaultConflictOptions(),
		Centrality:         graph.DefaultCentralityOptions(),
	}
}

// ReportSummary carries batch totals and timing.
type ReportSummary struct {
	AnalysisID        string    `json:"analysis_id"`
	TotalDocuments    int       `json:"total_documents"`
	ClusterCount      int       `json:"cluster_count"`
	CitationEdges     int       `json:"citation_edges"`
	ConflictCount     int       `json:"conflict_count"`
	ProcessingTimeMS  float64   `json:"processing_time_ms"`
	GeneratedAt       time.Time `json:"generated_at"`
	ClusteringFailure string    `json:"clustering_failure,omitempty"`
}

// CitationReport is the report view of the citation network.
type CitationReport struct {
	TotalNodes        int             `json:"total_nodes"`
	TotalEdges        int             `json:"total_edges"`
	CentralityMethod  string          `json:"centrality_method"`
	MostAuthoritative []DocumentScore `json:"most_authoritative"`
	MostConnected     []DocumentScore `json:"most_connected"`
	Edges             []CitationEdge  `json:"edges"`
}

// ConflictReport is the report view of the conflict analysis.
type ConflictReport struct {
	Summary          ConflictSummary   `json:"summary"`
	ConflictingPairs []ConflictingPair `json:"conflicting_pairs"`
}

// SimilarityInsights summarises the pairwise similarity of a batch.
type SimilarityInsights struct {
	AverageSimilarity        float64                  `json:"average_similarity"`
	MostSimilarPairs         []*DocumentSimilarity    `json:"most_similar_pairs"`
	RelationshipDistribution map[RelationshipType]int `json:"relationship_distribution"`
}

// Report is the combined cross-document analysis of a batch.
type Report struct {
	Summary              ReportSummary                    `json:"summary"`
	DocumentClusters     []ClusterSummary                 `json:"document_clusters"`
	CitationNetwork      CitationReport                   `json:"citation_network"`
	ComplementaryContent map[string]*ComplementaryContent `json:"complementary_content"`
	ConflictAnalysis     ConflictReport                   `json:"conflict_analysis"`
	SimilarityInsights   SimilarityInsights               `json:"similarity_insights"`
}

func newReport(docs int) *Report {
	return &Report{
		Summary: ReportSummary{
			AnalysisID:     uuid.NewString(),
			TotalDocuments: docs,
		},
		DocumentClusters: []ClusterSummary{},
		CitationNetwork: CitationReport{
			CentralityMethod:  graph.MethodDegree,
			MostAuthoritative: []DocumentScore{},
			MostConnected:     []DocumentScore{},
			Edges:             []CitationEdge{},
		},
		ComplementaryContent: make(map[string]*ComplementaryContent),
		ConflictAnalysis: ConflictReport{
			Summary:          NewConflictAnalysis().GetConflictSummary(),
			ConflictingPairs: []ConflictingPair{},
		},
		SimilarityInsights: SimilarityInsights{
			MostSimilarPairs:         []*DocumentSimilarity{},
			RelationshipDistribution: make(map[RelationshipType]int),
		},
	}
}

// Engine runs every cross-document analysis over a batch.
type Engine struct {
	cfg           Config
	similarity    *SimilarityCalculator
	clusters      *ClusterAnalyzer
	citations     *CitationAnalyzer
	complementary *ComplementaryFinder
	conflicts     *ConflictDetector
	logger        *slog.Logger
}

// NewEngine wires the analyzers. analyzer supplies semantic similarity and
// entity extraction and may be nil; store supplies embeddings for conflict
// banding and may be nil.
func NewEngine(analyzer nlp.Analyzer, store vectorstore.Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.ClusterStrategy == "" {
		cfg.ClusterStrategy = defaults.ClusterStrategy
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = defaults.MaxRecommendations
	}
	if cfg.SimilarThreshold <= 0 {
		cfg.SimilarThreshold = defaults.SimilarThreshold
	}
	if cfg.Centrality == (graph.CentralityOptions{}) {
		cfg.Centrality = defaults.Centrality
	}

	var (
		scorer    nlp.TextSimilarityScorer
		extractor nlp.EntityExtractor
	)
	if analyzer != nil {
		scorer, extractor = analyzer, analyzer
	}

	calc := NewSimilarityCalculator(scorer, cfg.Weights, cfg.Thresholds, logger)
	return &Engine{
		cfg:           cfg,
		similarity:    calc,
		clusters:      NewClusterAnalyzer(calc, cfg.Clustering, logger),
		citations:     NewCitationAnalyzer(cfg.Centrality, logger),
		complementary: NewComplementaryFinder(calc, cfg.Complementary, logger),
		conflicts:     NewConflictDetector(store, extractor, cfg.Conflict, logger),
		logger:        logger,
	}
}

// Similarity returns the engine's similarity calculator.
func (e *Engine) Similarity() *SimilarityCalculator { return e.similarity }

// Clusters returns the engine's cluster analyzer.
func (e *Engine) Clusters() *ClusterAnalyzer { return e.clusters }

// Citations returns the engine's citation analyzer.
func (e *Engine) Citations() *CitationAnalyzer { return e.citations }

// Complementary returns the engine's complementary content finder.
func (e *Engine) Complementary() *ComplementaryFinder { return e.complementary }

// Conflicts returns the engine's conflict detector.
func (e *Engine) Conflicts() *ConflictDetector { return e.conflicts }

// AnalyzeDocumentRelationships runs clustering, citation analysis,
// complementary content and conflict detection over docs. Fewer than two
// documents yield a well-formed report with empty collections.
func (e *Engine) AnalyzeDocumentRelationships(ctx context.Context, docs []types.SearchResult) *Report {
	start := time.Now()
	report := newReport(len(docs))
	defer func() {
		report.Summary.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000
		report.Summary.GeneratedAt = time.Now().UTC()
	}()

	if len(docs) < 2 {
		e.logger.Debug("Too few documents for cross-document analysis", "documents", len(docs))
		return report
	}

	matrix := e.similarity.CalculateMatrix(ctx, docs)
	report.SimilarityInsights = similarityInsights(matrix)

	clusters, err := e.clusters.CreateClustersFromMatrix(matrix, e.cfg.ClusterStrategy, e.cfg.MaxClusters, e.cfg.MinClusterSize)
	if err != nil {
		e.logger.Warn("Clustering failed", "strategy", e.cfg.ClusterStrategy, "error", err)
		report.Summary.ClusteringFailure = err.Error()
	}
	for _, c := range clusters {
		report.DocumentClusters = append(report.DocumentClusters, c.Summary())
	}

	network := e.citations.BuildCitationNetwork(docs)
	report.CitationNetwork = CitationReport{
		TotalNodes:        len(network.Nodes),
		TotalEdges:        len(network.Edges),
		CentralityMethod:  network.CentralityMethod,
		MostAuthoritative: e.citations.GetMostAuthoritativeDocuments(network, topDocumentLimit),
		MostConnected:     e.citations.GetMostConnectedDocuments(network, topDocumentLimit),
		Edges:             network.Edges,
	}

	for i := 0; i < matrix.Len(); i++ {
		content := e.complementary.complementaryFromMatrix(matrix, i, e.cfg.MaxRecommendations)
		report.ComplementaryContent[content.TargetDocID] = content
	}

	analysis := e.conflicts.DetectConflicts(ctx, docs)
	report.ConflictAnalysis = ConflictReport{
		Summary:          analysis.GetConflictSummary(),
		ConflictingPairs: analysis.ConflictingPairs,
	}

	report.Summary.ClusterCount = len(report.DocumentClusters)
	report.Summary.CitationEdges = len(network.Edges)
	report.Summary.ConflictCount = len(analysis.ConflictingPairs)
	e.logger.Info("Analyzed document relationships",
		"documents", len(docs),
		"clusters", report.Summary.ClusterCount,
		"citations", report.Summary.CitationEdges,
		"conflicts", report.Summary.ConflictCount,
		"duration", time.Since(start))
	return report
}

func similarityInsights(m *SimilarityMatrix) SimilarityInsights {
	insights := SimilarityInsights{
		MostSimilarPairs:         []*DocumentSimilarity{},
		RelationshipDistribution: make(map[RelationshipType]int),
	}
	pairs := m.Pairs()
	if len(pairs) == 0 {
		return insights
	}
	total := 0.0
	for _, p := range pairs {
		total += p.SimilarityScore
		insights.RelationshipDistribution[p.RelationshipType]++
	}
	insights.AverageSimilarity = total / float64(len(pairs))
	insights.MostSimilarPairs = append(insights.MostSimilarPairs, pairs[:min(topPairLimit, len(pairs))]...)
	return insights
}

// FindDocumentRelationships reports, for each requested kind, the documents
// related to targetID. Every requested kind has an entry, empty when nothing
// relates or the target is not in docs. No kinds means all of them.
func (e *Engine) FindDocumentRelationships(ctx context.Context, targetID string, docs []types.SearchResult, kinds []RelationshipKind) (map[RelationshipKind][]string, error) {
	if len(kinds) == 0 {
		kinds = AllRelationshipKinds
	}
	requested := make([]RelationshipKind, 0, len(kinds))
	for _, k := range kinds {
		parsed, err := ParseRelationshipKind(string(k))
		if err != nil {
			return nil, err
		}
		requested = append(requested, parsed)
	}
	kinds = requested

	out := make(map[RelationshipKind][]string, len(kinds))
	for _, k := range kinds {
		out[k] = []string{}
	}

	target := -1
	for i := range docs {
		if docs[i].Identity() == targetID {
			target = i
			break
		}
	}
	if target < 0 {
		e.logger.Debug("Relationship target not in batch", "doc_id", targetID)
		return out, nil
	}

	var (
		matrix  *SimilarityMatrix
		network *CitationNetwork
	)
	matrixOf := func() *SimilarityMatrix {
		if matrix == nil {
			matrix = e.similarity.CalculateMatrix(ctx, docs)
		}
		return matrix
	}
	networkOf := func() *CitationNetwork {
		if network == nil {
			network = e.citations.BuildCitationNetwork(docs)
		}
		return network
	}

	for _, kind := range kinds {
		switch kind {
		case SimilarKind:
			m := matrixOf()
			var similar []*DocumentSimilarity
			for i := 0; i < m.Len(); i++ {
				if p := m.Pair(target, i); p != nil && p.SimilarityScore >= e.cfg.SimilarThreshold {
					similar = append(similar, p)
				}
			}
			sortSimilarities(similar)
			for _, p := range similar {
				out[kind] = append(out[kind], otherID(p, targetID))
			}
		case ComplementaryKind:
			content := e.complementary.complementaryFromMatrix(matrixOf(), target, e.cfg.MaxRecommendations)
			for _, r := range content.Recommendations {
				if r.RelationshipType == Complementary {
					out[kind] = append(out[kind], r.DocumentID)
				}
			}
		case ConflictingKind:
			out[kind] = e.conflicts.DetectConflicts(ctx, docs).Involving(targetID)
		case CitesKind:
			out[kind] = append(out[kind], networkOf().Cites(targetID)...)
		case CitedByKind:
			out[kind] = append(out[kind], networkOf().CitedBy(targetID)...)
		case SameClusterKind:
			clusters, err := e.clusters.CreateClustersFromMatrix(matrixOf(), e.cfg.ClusterStrategy, e.cfg.MaxClusters, e.cfg.MinClusterSize)
			if err != nil {
				return nil, fmt.Errorf("failed to cluster documents: %w", err)
			}
			for _, c := range clusters {
				if !c.Contains(targetID) {
					continue
				}
				for _, id := range c.Documents {
					if id != targetID {
						out[kind] = append(out[kind], id)
					}
				}
			}
		}
	}
	return out, nil
}

func otherID(p *DocumentSimilarity, id string) string {
	if p.Doc1ID == id {
		return p.Doc2ID
	}
	return p.Doc1ID
}

func sortSimilarities(s []*DocumentSimilarity) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].SimilarityScore > s[j].SimilarityScore })
}
