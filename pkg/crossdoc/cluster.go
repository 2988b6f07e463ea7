package crossdoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// ClusterStrategy selects how documents are grouped.
type ClusterStrategy string

const (
	EntityBasedClustering  ClusterStrategy = "entity_based"
	TopicBasedClustering   ClusterStrategy = "topic_based"
	ProjectBasedClustering ClusterStrategy = "project_based"
	MixedFeatureClustering ClusterStrategy = "mixed_features"
	CommunityClustering    ClusterStrategy = "community"
)

// ErrUnknownStrategy is returned for an unrecognised clustering strategy.
var ErrUnknownStrategy = errors.New("unknown clustering strategy")

// ParseClusterStrategy converts s into a ClusterStrategy. Empty means entity_based.
func ParseClusterStrategy(s string) (ClusterStrategy, error) {
	switch strategy := ClusterStrategy(strings.ToLower(strings.TrimSpace(s))); strategy {
	case "":
		return EntityBasedClustering, nil
	case EntityBasedClustering, TopicBasedClustering, ProjectBasedClustering, MixedFeatureClustering, CommunityClustering:
		return strategy, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

const (
	defaultMaxClusters    = 10
	defaultMinClusterSize = 2
	summaryTermLimit      = 5
	maxPropagationRounds  = 100
)

// ClusterOptions tunes the greedy strategies.
type ClusterOptions struct {
	// EntityThreshold is the entity Jaccard a document needs with a cluster seed.
	EntityThreshold float64 `json:"entity_threshold" mapstructure:"entity_threshold"`
	// TopicThreshold is the topic Jaccard a document needs with a cluster seed.
	TopicThreshold float64 `json:"topic_threshold" mapstructure:"topic_threshold"`
	// MixedThreshold is the combined similarity a document needs with a seed.
	MixedThreshold float64 `json:"mixed_threshold" mapstructure:"mixed_threshold"`
	// CommunityThreshold is the combined similarity that links two documents
	// in the community graph.
	CommunityThreshold float64 `json:"community_threshold" mapstructure:"community_threshold"`
}

// DefaultClusterOptions returns the default thresholds.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		EntityThreshold:    0.3,
		TopicThreshold:     0.3,
		MixedThreshold:     0.5,
		CommunityThreshold: 0.3,
	}
}

// DocumentCluster is a group of related documents.
type DocumentCluster struct {
	ClusterID           string          `json:"cluster_id"`
	Name                string          `json:"name"`
	Documents           []string        `json:"documents"`
	SharedEntities      []string        `json:"shared_entities"`
	SharedTopics        []string        `json:"shared_topics"`
	ClusterStrategy     ClusterStrategy `json:"cluster_strategy"`
	CoherenceScore      float64         `json:"coherence_score"`
	RepresentativeDocID string          `json:"representative_doc_id"`
	ClusterDescription  string          `json:"cluster_description"`
}

// ClusterSummary is the condensed view of a cluster used in reports.
type ClusterSummary struct {
	ClusterID           string   `json:"cluster_id"`
	Name                string   `json:"name"`
	DocumentCount       int      `json:"document_count"`
	Documents           []string `json:"documents"`
	SharedEntities      []string `json:"shared_entities"`
	SharedTopics        []string `json:"shared_topics"`
	CoherenceScore      float64  `json:"coherence_score"`
	RepresentativeDocID string   `json:"representative_doc_id"`
	Description         string   `json:"description"`
}

// Summary caps the shared entity and topic lists at five each.
func (c *DocumentCluster) Summary() ClusterSummary {
	return ClusterSummary{
		ClusterID:           c.ClusterID,
		Name:                c.Name,
		DocumentCount:       len(c.Documents),
		Documents:           c.Documents,
		SharedEntities:      headStrings(c.SharedEntities, summaryTermLimit),
		SharedTopics:        headStrings(c.SharedTopics, summaryTermLimit),
		CoherenceScore:      c.CoherenceScore,
		RepresentativeDocID: c.RepresentativeDocID,
		Description:         c.ClusterDescription,
	}
}

// Contains reports whether the cluster holds docID.
func (c *DocumentCluster) Contains(docID string) bool {
	for _, id := range c.Documents {
		if id == docID {
			return true
		}
	}
	return false
}

// ClusterAnalyzer groups documents using the similarity calculator.
type ClusterAnalyzer struct {
	calc   *SimilarityCalculator
	opts   ClusterOptions
	logger *slog.Logger
}

// NewClusterAnalyzer creates an analyzer. Zero options take the defaults.
func NewClusterAnalyzer(calc *SimilarityCalculator, opts ClusterOptions, logger *slog.Logger) *ClusterAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultClusterOptions()
	if opts.EntityThreshold <= 0 {
		opts.EntityThreshold = defaults.EntityThreshold
	}
	if opts.TopicThreshold <= 0 {
		opts.TopicThreshold = defaults.TopicThreshold
	}
	if opts.MixedThreshold <= 0 {
		opts.MixedThreshold = defaults.MixedThreshold
	}
	if opts.CommunityThreshold <= 0 {
		opts.CommunityThreshold = defaults.CommunityThreshold
	}
	return &ClusterAnalyzer{calc: calc, opts: opts, logger: logger}
}

// CreateClusters groups docs under strategy. Clusters smaller than
// minClusterSize are dropped and at most maxClusters are returned, ranked by
// coherence. Non-positive limits take the defaults of 10 clusters of at
// least 2 documents.
func (a *ClusterAnalyzer) CreateClusters(ctx context.Context, docs []types.SearchResult, strategy ClusterStrategy, maxClusters, minClusterSize int) ([]*DocumentCluster, error) {
	if _, err := ParseClusterStrategy(string(strategy)); err != nil {
		return nil, err
	}
	return a.CreateClustersFromMatrix(a.calc.CalculateMatrix(ctx, docs), strategy, maxClusters, minClusterSize)
}

// CreateClustersFromMatrix clusters the documents of a precomputed matrix.
func (a *ClusterAnalyzer) CreateClustersFromMatrix(m *SimilarityMatrix, strategy ClusterStrategy, maxClusters, minClusterSize int) ([]*DocumentCluster, error) {
	strategy, err := ParseClusterStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	if maxClusters <= 0 {
		maxClusters = defaultMaxClusters
	}
	if minClusterSize <= 0 {
		minClusterSize = defaultMinClusterSize
	}
	if m.Len() == 0 {
		return []*DocumentCluster{}, nil
	}

	var groups [][]int
	switch strategy {
	case EntityBasedClustering:
		groups = greedyGroups(m.Len(), func(seed, candidate int) bool {
			return m.Pair(seed, candidate).MetricScores[MetricEntityOverlap] >= a.opts.EntityThreshold
		})
	case TopicBasedClustering:
		groups = greedyGroups(m.Len(), func(seed, candidate int) bool {
			return m.Pair(seed, candidate).MetricScores[MetricTopicOverlap] >= a.opts.TopicThreshold
		})
	case ProjectBasedClustering:
		groups = projectGroups(m)
	case MixedFeatureClustering:
		groups = greedyGroups(m.Len(), func(seed, candidate int) bool {
			return m.Score(seed, candidate) >= a.opts.MixedThreshold
		})
	case CommunityClustering:
		groups = a.labelPropagation(m)
	}

	clusters := make([]*DocumentCluster, 0, len(groups))
	for _, members := range groups {
		if len(members) < minClusterSize {
			continue
		}
		clusters = append(clusters, describeCluster(m, members, strategy))
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].CoherenceScore != clusters[j].CoherenceScore {
			return clusters[i].CoherenceScore > clusters[j].CoherenceScore
		}
		if len(clusters[i].Documents) != len(clusters[j].Documents) {
			return len(clusters[i].Documents) > len(clusters[j].Documents)
		}
		return clusters[i].Documents[0] < clusters[j].Documents[0]
	})
	if len(clusters) > maxClusters {
		clusters = clusters[:maxClusters]
	}
	for i, c := range clusters {
		c.ClusterID = fmt.Sprintf("%s-%d", strategy, i+1)
	}

	a.logger.Debug("Created document clusters", "strategy", strategy, "documents", m.Len(), "groups", len(groups), "clusters", len(clusters))
	return clusters, nil
}

// greedyGroups walks documents in input order; each unassigned document seeds
// a group and pulls in every later unassigned document that joins it.
func greedyGroups(n int, joins func(seed, candidate int) bool) [][]int {
	assigned := make([]bool, n)
	var groups [][]int
	for seed := 0; seed < n; seed++ {
		if assigned[seed] {
			continue
		}
		assigned[seed] = true
		group := []int{seed}
		for candidate := seed + 1; candidate < n; candidate++ {
			if !assigned[candidate] && joins(seed, candidate) {
				assigned[candidate] = true
				group = append(group, candidate)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// projectGroups groups documents by exact project; documents without a
// project are left out.
func projectGroups(m *SimilarityMatrix) [][]int {
	byProject := make(map[string][]int)
	var order []string
	for i := 0; i < m.Len(); i++ {
		project := utils.NormalizeKey(m.Doc(i).ProjectName)
		if project == "" {
			continue
		}
		if _, ok := byProject[project]; !ok {
			order = append(order, project)
		}
		byProject[project] = append(byProject[project], i)
	}
	groups := make([][]int, 0, len(order))
	for _, p := range order {
		groups = append(groups, byProject[p])
	}
	return groups
}

// labelPropagation links documents whose combined similarity reaches the
// community threshold and propagates labels until they settle. Each document
// starts in its own community and adopts the label with the highest total
// link weight among its neighbours, ties going to the smaller label.
func (a *ClusterAnalyzer) labelPropagation(m *SimilarityMatrix) [][]int {
	n := m.Len()
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && m.Score(i, j) >= a.opts.CommunityThreshold {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	for round := 0; round < maxPropagationRounds; round++ {
		changed := false
		for i := 0; i < n; i++ {
			if len(neighbors[i]) == 0 {
				continue
			}
			weights := make(map[int]float64)
			for _, j := range neighbors[i] {
				weights[labels[j]] += m.Score(i, j)
			}

			type labelScore struct {
				label  int
				weight float64
			}
			scores := make([]labelScore, 0, len(weights))
			for label, w := range weights {
				scores = append(scores, labelScore{label: label, weight: w})
			}
			sort.Slice(scores, func(x, y int) bool {
				if scores[x].weight != scores[y].weight {
					return scores[x].weight > scores[y].weight
				}
				return scores[x].label < scores[y].label
			})

			best := scores[0].label
			if best != labels[i] && scores[0].weight > weights[labels[i]] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		if round == maxPropagationRounds-1 {
			a.logger.Warn("Label propagation did not settle", "documents", n, "rounds", maxPropagationRounds)
		}
	}

	byLabel := make(map[int][]int)
	var order []int
	for i, label := range labels {
		if _, ok := byLabel[label]; !ok {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], i)
	}
	groups := make([][]int, 0, len(order))
	for _, label := range order {
		groups = append(groups, byLabel[label])
	}
	return groups
}

func describeCluster(m *SimilarityMatrix, members []int, strategy ClusterStrategy) *DocumentCluster {
	c := &DocumentCluster{
		Documents:       make([]string, len(members)),
		ClusterStrategy: strategy,
		CoherenceScore:  m.meanPairwise(members),
	}

	entityCounts := make(map[string]int)
	topicCounts := make(map[string]int)
	projectCounts := make(map[string]int)
	bestMean := -1.0
	for idx, i := range members {
		doc := m.Doc(i)
		c.Documents[idx] = doc.Identity()
		for k := range utils.NormalizedSet(doc.EntityTexts()) {
			entityCounts[k]++
		}
		for k := range utils.NormalizedSet(doc.TopicTexts()) {
			topicCounts[k]++
		}
		if p := strings.TrimSpace(doc.ProjectName); p != "" {
			projectCounts[p]++
		}

		mean := 0.0
		for _, j := range members {
			if j != i {
				mean += m.Score(i, j)
			}
		}
		if len(members) > 1 {
			mean /= float64(len(members) - 1)
		}
		if mean > bestMean {
			bestMean = mean
			c.RepresentativeDocID = doc.Identity()
		}
	}

	c.SharedEntities = sharedTerms(entityCounts, len(members))
	c.SharedTopics = sharedTerms(topicCounts, len(members))

	switch {
	case strategy == ProjectBasedClustering && len(projectCounts) > 0:
		c.Name = utils.SortedKeys(projectCounts)[0]
	case strategy == TopicBasedClustering && len(c.SharedTopics) > 0:
		c.Name = c.SharedTopics[0]
	case len(c.SharedEntities) > 0:
		c.Name = c.SharedEntities[0]
	case len(c.SharedTopics) > 0:
		c.Name = c.SharedTopics[0]
	default:
		c.Name = m.Doc(members[0]).DisplayTitle()
	}

	c.ClusterDescription = fmt.Sprintf("%d documents grouped by %s", len(members), strings.ReplaceAll(string(strategy), "_", " "))
	var terms []string
	terms = append(terms, headStrings(c.SharedEntities, 3)...)
	terms = append(terms, headStrings(c.SharedTopics, 3)...)
	if len(terms) > 0 {
		c.ClusterDescription += " around " + strings.Join(utils.UniqueStrings(terms), ", ")
	}
	return c
}

// sharedTerms returns terms held by at least two members (or the only
// member), most frequent first.
func sharedTerms(counts map[string]int, members int) []string {
	minCount := 2
	if members < 2 {
		minCount = 1
	}
	out := make([]string, 0, len(counts))
	for term, n := range counts {
		if n >= minCount {
			out = append(out, term)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
