package crossdoc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// DocumentRole is the structural role a document plays.
type DocumentRole string

const (
	RoleTutorial        DocumentRole = "tutorial"
	RoleReference       DocumentRole = "reference"
	RoleTroubleshooting DocumentRole = "troubleshooting"
	RoleExample         DocumentRole = "example"
	RoleOverview        DocumentRole = "overview"
	RoleUnknown         DocumentRole = "unknown"
)

// roleMarkers are matched at word starts against source type, titles and
// breadcrumb, in order; the first role with a marker wins.
var roleMarkers = []struct {
	role    DocumentRole
	markers []string
}{
	{RoleTroubleshooting, []string{"troubleshoot", "faq", "known issue", "error", "debug"}},
	{RoleTutorial, []string{"tutorial", "guide", "how to", "how-to", "getting started", "quickstart", "walkthrough"}},
	{RoleExample, []string{"example", "sample", "recipe", "cookbook"}},
	{RoleReference, []string{"reference", "api", "schema", "configuration", "changelog"}},
	{RoleOverview, []string{"overview", "introduction", "concept", "architecture", "readme"}},
}

// ClassifyRole infers a document's role from its metadata.
func ClassifyRole(doc *types.SearchResult) DocumentRole {
	surface := " " + strings.Join(utils.Words(strings.Join([]string{doc.SourceType, doc.SourceTitle, doc.SectionTitle, doc.Breadcrumb}, " ")), " ")
	for _, rm := range roleMarkers {
		for _, m := range rm.markers {
			if strings.Contains(surface, " "+m) {
				return rm.role
			}
		}
	}
	return RoleUnknown
}

// RecommendationStrategy names how recommendations are ranked.
const RecommendationStrategy = "role_aware_similarity"

// ComplementaryOptions tunes the finder.
type ComplementaryOptions struct {
	// MinSimilarity skips candidates that are essentially unrelated.
	MinSimilarity float64 `json:"min_similarity" mapstructure:"min_similarity"`
	// BandMin and BandMax bound the moderate similarity in which a document
	// with a different role counts as complementary.
	BandMin float64 `json:"band_min" mapstructure:"band_min"`
	BandMax float64 `json:"band_max" mapstructure:"band_max"`
	// DuplicateThreshold marks near-duplicates, whose score is multiplied by
	// DuplicatePenalty.
	DuplicateThreshold float64 `json:"duplicate_threshold" mapstructure:"duplicate_threshold"`
	DuplicatePenalty   float64 `json:"duplicate_penalty" mapstructure:"duplicate_penalty"`
	// ComplementaryBoost multiplies the score of complementary candidates.
	ComplementaryBoost float64 `json:"complementary_boost" mapstructure:"complementary_boost"`
}

// DefaultComplementaryOptions returns the default tuning.
func DefaultComplementaryOptions() ComplementaryOptions {
	return ComplementaryOptions{
		MinSimilarity:      0.1,
		BandMin:            0.2,
		BandMax:            0.9,
		DuplicateThreshold: 0.9,
		DuplicatePenalty:   0.3,
		ComplementaryBoost: 1.5,
	}
}

// Recommendation is one suggested document.
type Recommendation struct {
	DocumentID       string           `json:"doc_id"`
	Score            float64          `json:"score"`
	Reason           string           `json:"reason"`
	Role             DocumentRole     `json:"role"`
	RelationshipType RelationshipType `json:"relationship_type"`
}

// ComplementaryContent lists recommendations for one target document.
type ComplementaryContent struct {
	TargetDocID            string           `json:"target_doc_id"`
	Recommendations        []Recommendation `json:"recommendations"`
	RecommendationStrategy string           `json:"recommendation_strategy"`
	GeneratedAt            time.Time        `json:"generated_at"`
}

// DocumentIDs returns the recommended document ids in rank order.
func (c *ComplementaryContent) DocumentIDs() []string {
	out := make([]string, len(c.Recommendations))
	for i, r := range c.Recommendations {
		out[i] = r.DocumentID
	}
	return out
}

// ComplementaryFinder recommends documents that complete a target document.
type ComplementaryFinder struct {
	calc   *SimilarityCalculator
	opts   ComplementaryOptions
	logger *slog.Logger
}

// NewComplementaryFinder creates a finder. Zero options take the defaults.
func NewComplementaryFinder(calc *SimilarityCalculator, opts ComplementaryOptions, logger *slog.Logger) *ComplementaryFinder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts == (ComplementaryOptions{}) {
		opts = DefaultComplementaryOptions()
	}
	return &ComplementaryFinder{calc: calc, opts: opts, logger: logger}
}

// FindComplementaryContent ranks candidates for target and keeps the top
// maxRecommendations. Documents with a different role at moderate
// similarity are boosted; near-duplicates are penalised.
func (f *ComplementaryFinder) FindComplementaryContent(ctx context.Context, target *types.SearchResult, candidates []types.SearchResult, maxRecommendations int) *ComplementaryContent {
	scored := make([]*DocumentSimilarity, 0, len(candidates))
	docs := make([]*types.SearchResult, 0, len(candidates))
	for i := range candidates {
		if candidates[i].Identity() == target.Identity() {
			continue
		}
		scored = append(scored, f.calc.CalculateSimilarity(ctx, target, &candidates[i]))
		docs = append(docs, &candidates[i])
	}
	return f.rank(target, docs, scored, maxRecommendations)
}

// complementaryFromMatrix ranks every other document of a matrix for the
// document at index target.
func (f *ComplementaryFinder) complementaryFromMatrix(m *SimilarityMatrix, target, maxRecommendations int) *ComplementaryContent {
	scored := make([]*DocumentSimilarity, 0, m.Len())
	docs := make([]*types.SearchResult, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		if i == target {
			continue
		}
		scored = append(scored, m.Pair(target, i))
		docs = append(docs, m.Doc(i))
	}
	return f.rank(m.Doc(target), docs, scored, maxRecommendations)
}

func (f *ComplementaryFinder) rank(target *types.SearchResult, docs []*types.SearchResult, scored []*DocumentSimilarity, maxRecommendations int) *ComplementaryContent {
	content := &ComplementaryContent{
		TargetDocID:            target.Identity(),
		Recommendations:        []Recommendation{},
		RecommendationStrategy: RecommendationStrategy,
		GeneratedAt:            time.Now().UTC(),
	}
	targetRole := ClassifyRole(target)

	for i, sim := range scored {
		score := sim.SimilarityScore
		if score < f.opts.MinSimilarity {
			continue
		}
		role := ClassifyRole(docs[i])
		rec := Recommendation{
			DocumentID:       docs[i].Identity(),
			Role:             role,
			RelationshipType: sim.RelationshipType,
		}

		switch {
		case score >= f.opts.DuplicateThreshold:
			rec.Score = score * f.opts.DuplicatePenalty
			rec.Reason = fmt.Sprintf("Near duplicate (similarity %.2f)", score)
		case role != targetRole && role != RoleUnknown && targetRole != RoleUnknown &&
			score >= f.opts.BandMin && score < f.opts.BandMax:
			rec.Score = utils.Clamp(score*f.opts.ComplementaryBoost, 0, 1)
			rec.RelationshipType = Complementary
			rec.Reason = fmt.Sprintf("Complements %s with %s content; %s", targetRole, role, sim.Explanation())
		default:
			rec.Score = score
			rec.Reason = sim.Explanation()
		}
		content.Recommendations = append(content.Recommendations, rec)
	}

	sort.SliceStable(content.Recommendations, func(i, j int) bool {
		a, b := content.Recommendations[i], content.Recommendations[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.DocumentID < b.DocumentID
	})
	if maxRecommendations > 0 && len(content.Recommendations) > maxRecommendations {
		content.Recommendations = content.Recommendations[:maxRecommendations]
	}

	f.logger.Debug("Found complementary content", "target", content.TargetDocID, "candidates", len(docs), "recommendations", len(content.Recommendations))
	return content
}
