package crossdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// Metric names a similarity sub-score.
type Metric string

const (
	MetricEntityOverlap Metric = "entity_overlap"
	MetricTopicOverlap  Metric = "topic_overlap"
	MetricMetadata      Metric = "metadata"
	MetricSemantic      Metric = "semantic"
)

// RelationshipType classifies how two documents relate.
type RelationshipType string

const (
	TopicalGrouping    RelationshipType = "topical_grouping"
	ProjectGrouping    RelationshipType = "project_grouping"
	SemanticSimilarity RelationshipType = "semantic_similarity"
	CrossReference     RelationshipType = "cross_reference"
	Complementary      RelationshipType = "complementary"
	Conflicting        RelationshipType = "conflicting"
)

const (
	explanationTerms   = 3
	defaultExplanation = "Semantic similarity"
)

// SimilarityWeights blend the four sub-scores. They are normalised by their
// sum, so only their ratios matter.
type SimilarityWeights struct {
	Entity   float64 `json:"entity" mapstructure:"entity"`
	Topic    float64 `json:"topic" mapstructure:"topic"`
	Metadata float64 `json:"metadata" mapstructure:"metadata"`
	Semantic float64 `json:"semantic" mapstructure:"semantic"`
}

// DefaultSimilarityWeights returns entity .25, topic .25, metadata .2, semantic .3.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{Entity: 0.25, Topic: 0.25, Metadata: 0.2, Semantic: 0.3}
}

func (w SimilarityWeights) sum() float64 {
	return w.Entity + w.Topic + w.Metadata + w.Semantic
}

// ClassificationThresholds drive relationship-type classification.
type ClassificationThresholds struct {
	// HighEntityOverlap and HighTopicOverlap mark strong structural overlap.
	HighEntityOverlap float64 `json:"high_entity_overlap" mapstructure:"high_entity_overlap"`
	HighTopicOverlap  float64 `json:"high_topic_overlap" mapstructure:"high_topic_overlap"`
	// HighSemantic marks semantically close texts.
	HighSemantic float64 `json:"high_semantic" mapstructure:"high_semantic"`
	// LowStructural is the overlap below which two documents share little
	// vocabulary of entities and topics.
	LowStructural float64 `json:"low_structural" mapstructure:"low_structural"`
	// Salience is the minimum metric score worth naming in an explanation.
	Salience float64 `json:"salience" mapstructure:"salience"`
}

// DefaultClassificationThresholds returns the tuned defaults.
func DefaultClassificationThresholds() ClassificationThresholds {
	return ClassificationThresholds{
		HighEntityOverlap: 0.5,
		HighTopicOverlap:  0.5,
		HighSemantic:      0.7,
		LowStructural:     0.2,
		Salience:          0.5,
	}
}

// DocumentSimilarity is the comparison of two documents.
type DocumentSimilarity struct {
	Doc1ID           string             `json:"doc1_id"`
	Doc2ID           string             `json:"doc2_id"`
	SimilarityScore  float64            `json:"similarity_score"`
	MetricScores     map[Metric]float64 `json:"metric_scores"`
	SharedEntities   []string           `json:"shared_entities"`
	SharedTopics     []string           `json:"shared_topics"`
	RelationshipType RelationshipType   `json:"relationship_type"`
	// CustomExplanation overrides the composed explanation when set.
	CustomExplanation string `json:"-"`

	salience float64
}

// Explanation describes why the documents are similar.
func (s *DocumentSimilarity) Explanation() string {
	if s.CustomExplanation != "" {
		return s.CustomExplanation
	}

	var parts []string
	if len(s.SharedEntities) > 0 {
		parts = append(parts, "shared entities: "+strings.Join(headStrings(s.SharedEntities, explanationTerms), ", "))
	}
	if len(s.SharedTopics) > 0 {
		parts = append(parts, "shared topics: "+strings.Join(headStrings(s.SharedTopics, explanationTerms), ", "))
	}
	if metric, score := s.topMetric(); metric != "" && score >= s.salience {
		parts = append(parts, fmt.Sprintf("strongest signal: %s (%.2f)", metric, score))
	}
	if len(parts) == 0 {
		return defaultExplanation
	}
	return strings.Join(parts, "; ")
}

func (s *DocumentSimilarity) topMetric() (Metric, float64) {
	var (
		best  Metric
		score float64
	)
	for _, m := range []Metric{MetricEntityOverlap, MetricTopicOverlap, MetricMetadata, MetricSemantic} {
		if v, ok := s.MetricScores[m]; ok && v > score {
			best, score = m, v
		}
	}
	return best, score
}

// MarshalJSON adds the explanation to the encoded form.
func (s *DocumentSimilarity) MarshalJSON() ([]byte, error) {
	type plain DocumentSimilarity
	return json.Marshal(struct {
		*plain
		Explanation string `json:"explanation"`
	}{plain: (*plain)(s), Explanation: s.Explanation()})
}

// SimilarityCalculator compares documents pairwise.
type SimilarityCalculator struct {
	scorer     nlp.TextSimilarityScorer
	weights    SimilarityWeights
	thresholds ClassificationThresholds
	logger     *slog.Logger
}

// NewSimilarityCalculator creates a calculator. A nil scorer falls back to
// lexical similarity; zero weights or thresholds take the defaults.
func NewSimilarityCalculator(scorer nlp.TextSimilarityScorer, weights SimilarityWeights, thresholds ClassificationThresholds, logger *slog.Logger) *SimilarityCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	if scorer == nil {
		scorer = nlp.LexicalSimilarity{}
	}
	if weights.sum() <= 0 {
		weights = DefaultSimilarityWeights()
	}
	if thresholds == (ClassificationThresholds{}) {
		thresholds = DefaultClassificationThresholds()
	}
	return &SimilarityCalculator{
		scorer:     scorer,
		weights:    weights,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Weights returns the blend weights in use.
func (c *SimilarityCalculator) Weights() SimilarityWeights {
	return c.weights
}

// CalculateSimilarity compares two documents. The score is 0 when either has
// no text; a document compared with itself scores 1.
func (c *SimilarityCalculator) CalculateSimilarity(ctx context.Context, doc1, doc2 *types.SearchResult) *DocumentSimilarity {
	sim := &DocumentSimilarity{
		Doc1ID:           doc1.Identity(),
		Doc2ID:           doc2.Identity(),
		MetricScores:     make(map[Metric]float64, 4),
		SharedEntities:   []string{},
		SharedTopics:     []string{},
		RelationshipType: ProjectGrouping,
		salience:         c.thresholds.Salience,
	}
	if !doc1.HasText() || !doc2.HasText() {
		sim.CustomExplanation = "No comparable text"
		return sim
	}

	entities1 := utils.NormalizedSet(doc1.EntityTexts())
	entities2 := utils.NormalizedSet(doc2.EntityTexts())
	topics1 := utils.NormalizedSet(doc1.TopicTexts())
	topics2 := utils.NormalizedSet(doc2.TopicTexts())
	sim.SharedEntities = utils.Intersection(entities1, entities2)
	sim.SharedTopics = utils.Intersection(topics1, topics2)

	if sim.Doc1ID == sim.Doc2ID {
		for _, m := range []Metric{MetricEntityOverlap, MetricTopicOverlap, MetricMetadata, MetricSemantic} {
			sim.MetricScores[m] = 1
		}
		sim.SimilarityScore = 1
		sim.RelationshipType = TopicalGrouping
		sim.CustomExplanation = "Same document"
		return sim
	}

	sim.MetricScores[MetricEntityOverlap] = utils.Jaccard(entities1, entities2)
	sim.MetricScores[MetricTopicOverlap] = utils.Jaccard(topics1, topics2)
	sim.MetricScores[MetricMetadata] = metadataSimilarity(doc1, doc2)
	sim.MetricScores[MetricSemantic] = c.semanticSimilarity(ctx, doc1, doc2)

	w := c.weights
	score := (w.Entity*sim.MetricScores[MetricEntityOverlap] +
		w.Topic*sim.MetricScores[MetricTopicOverlap] +
		w.Metadata*sim.MetricScores[MetricMetadata] +
		w.Semantic*sim.MetricScores[MetricSemantic]) / w.sum()
	sim.SimilarityScore = utils.Clamp(score, 0, 1)
	sim.RelationshipType = c.classify(doc1, doc2, sim.MetricScores)
	return sim
}

func (c *SimilarityCalculator) semanticSimilarity(ctx context.Context, doc1, doc2 *types.SearchResult) float64 {
	score, err := c.scorer.TextSimilarity(ctx, doc1.Text, doc2.Text)
	if err != nil {
		c.logger.Warn("Semantic similarity failed", "doc1", doc1.Identity(), "doc2", doc2.Identity(), "error", err)
		return 0
	}
	return utils.Clamp(score, 0, 1)
}

// classify assigns a relationship type from the sub-scores.
func (c *SimilarityCalculator) classify(doc1, doc2 *types.SearchResult, scores map[Metric]float64) RelationshipType {
	t := c.thresholds
	entity := scores[MetricEntityOverlap]
	topic := scores[MetricTopicOverlap]
	structural := entity
	if topic > structural {
		structural = topic
	}

	switch {
	case sameProject(doc1, doc2) && entity >= t.HighEntityOverlap:
		if topic >= t.HighTopicOverlap {
			return TopicalGrouping
		}
		return ProjectGrouping
	case entity >= t.HighEntityOverlap || topic >= t.HighTopicOverlap:
		return TopicalGrouping
	case scores[MetricSemantic] >= t.HighSemantic && structural < t.LowStructural:
		return SemanticSimilarity
	case structural > 0 && structural < t.LowStructural:
		return CrossReference
	}
	return ProjectGrouping
}

func sameProject(doc1, doc2 *types.SearchResult) bool {
	return doc1.ProjectName != "" && utils.NormalizeKey(doc1.ProjectName) == utils.NormalizeKey(doc2.ProjectName)
}

// metadataSimilarity scores shared project (.5), source type (.3) and
// breadcrumb prefix (.2).
func metadataSimilarity(doc1, doc2 *types.SearchResult) float64 {
	score := 0.0
	if sameProject(doc1, doc2) {
		score += 0.5
	}
	if doc1.SourceType != "" && strings.EqualFold(doc1.SourceType, doc2.SourceType) {
		score += 0.3
	}
	score += 0.2 * breadcrumbOverlap(doc1.BreadcrumbParts(), doc2.BreadcrumbParts())
	return score
}

// breadcrumbOverlap is the shared prefix length over the longer breadcrumb.
func breadcrumbOverlap(a, b []string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	shared := 0
	for shared < len(a) && shared < len(b) && strings.EqualFold(a[shared], b[shared]) {
		shared++
	}
	return float64(shared) / float64(longest)
}

func headStrings(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// SimilarityMatrix holds every pairwise comparison of a batch.
type SimilarityMatrix struct {
	docs  []types.SearchResult
	index map[string]int
	pairs [][]*DocumentSimilarity
}

// CalculateMatrix compares every pair of docs once.
func (c *SimilarityCalculator) CalculateMatrix(ctx context.Context, docs []types.SearchResult) *SimilarityMatrix {
	m := &SimilarityMatrix{
		docs:  docs,
		index: make(map[string]int, len(docs)),
		pairs: make([][]*DocumentSimilarity, len(docs)),
	}
	for i := range docs {
		m.index[docs[i].Identity()] = i
		m.pairs[i] = make([]*DocumentSimilarity, len(docs))
	}
	for i := range docs {
		for j := i + 1; j < len(docs); j++ {
			m.pairs[i][j] = c.CalculateSimilarity(ctx, &docs[i], &docs[j])
		}
	}
	c.logger.Debug("Computed similarity matrix", "documents", len(docs), "pairs", len(docs)*(len(docs)-1)/2)
	return m
}

// Len returns the number of documents.
func (m *SimilarityMatrix) Len() int { return len(m.docs) }

// Doc returns the i-th document.
func (m *SimilarityMatrix) Doc(i int) *types.SearchResult { return &m.docs[i] }

// IndexOf returns the position of a document id, or -1.
func (m *SimilarityMatrix) IndexOf(id string) int {
	if i, ok := m.index[id]; ok {
		return i
	}
	return -1
}

// Pair returns the comparison of documents i and j, nil when i == j.
func (m *SimilarityMatrix) Pair(i, j int) *DocumentSimilarity {
	if i == j {
		return nil
	}
	if i > j {
		i, j = j, i
	}
	return m.pairs[i][j]
}

// Score returns the combined similarity of documents i and j; 1 when i == j.
func (m *SimilarityMatrix) Score(i, j int) float64 {
	if i == j {
		return 1
	}
	return m.Pair(i, j).SimilarityScore
}

// Pairs returns every comparison ordered by score descending, then by ids.
func (m *SimilarityMatrix) Pairs() []*DocumentSimilarity {
	var out []*DocumentSimilarity
	for i := range m.pairs {
		for j := i + 1; j < len(m.pairs); j++ {
			out = append(out, m.pairs[i][j])
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].SimilarityScore != out[b].SimilarityScore {
			return out[a].SimilarityScore > out[b].SimilarityScore
		}
		if out[a].Doc1ID != out[b].Doc1ID {
			return out[a].Doc1ID < out[b].Doc1ID
		}
		return out[a].Doc2ID < out[b].Doc2ID
	})
	return out
}

// meanPairwise averages the combined similarity over every pair of members.
// A single member is perfectly coherent.
func (m *SimilarityMatrix) meanPairwise(members []int) float64 {
	if len(members) < 2 {
		return 1
	}
	total, n := 0.0, 0
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			total += m.Score(members[a], members[b])
			n++
		}
	}
	return total / float64(n)
}
