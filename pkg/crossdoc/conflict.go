package crossdoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/docgraph/pkg/nlp"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

// PairTier buckets document pairs by priority.
type PairTier string

const (
	PrimaryTier   PairTier = "primary"
	SecondaryTier PairTier = "secondary"
	TertiaryTier  PairTier = "tertiary"
)

const (
	baseConflictConfidence  = 0.7
	extraConflictConfidence = 0.05
	summaryCategoryLimit    = 3
	summarySuggestionLimit  = 3
)

// ConflictOptions tunes the conflict pipeline.
type ConflictOptions struct {
	// MinTextLength is the trimmed length below which a text is too short to compare.
	MinTextLength int `json:"min_text_length" mapstructure:"min_text_length"`
	// PrimaryThreshold and SecondaryThreshold bucket pair priorities.
	PrimaryThreshold   float64 `json:"primary_threshold" mapstructure:"primary_threshold"`
	SecondaryThreshold float64 `json:"secondary_threshold" mapstructure:"secondary_threshold"`
	// MinVectorSimilarity and MaxVectorSimilarity bound the conflict band.
	MinVectorSimilarity float64 `json:"min_vector_similarity" mapstructure:"min_vector_similarity"`
	MaxVectorSimilarity float64 `json:"max_vector_similarity" mapstructure:"max_vector_similarity"`
	// MaxPairs caps how many of the highest-priority pairs are examined.
	MaxPairs int `json:"max_pairs" mapstructure:"max_pairs"`
	// MaxConcurrentFetches bounds concurrent embedding fetches.
	MaxConcurrentFetches int `json:"max_concurrent_fetches" mapstructure:"max_concurrent_fetches"`
	// FetchTimeout applies to each embedding fetch.
	FetchTimeout time.Duration `json:"fetch_timeout" mapstructure:"fetch_timeout"`
	// SubjectWindow is how many content words before a value name its subject.
	SubjectWindow int `json:"subject_window" mapstructure:"subject_window"`
}

// DefaultConflictOptions returns the default pipeline settings.
func DefaultConflictOptions() ConflictOptions {
	return ConflictOptions{
		MinTextLength:        10,
		PrimaryThreshold:     0.8,
		SecondaryThreshold:   0.5,
		MinVectorSimilarity:  0.6,
		MaxVectorSimilarity:  0.95,
		MaxPairs:             50,
		MaxConcurrentFetches: utils.DefaultMaxConcurrency,
		FetchTimeout:         5 * time.Second,
		SubjectWindow:        3,
	}
}

func (o ConflictOptions) withDefaults() ConflictOptions {
	d := DefaultConflictOptions()
	if o.MinTextLength <= 0 {
		o.MinTextLength = d.MinTextLength
	}
	if o.PrimaryThreshold <= 0 {
		o.PrimaryThreshold = d.PrimaryThreshold
	}
	if o.SecondaryThreshold <= 0 {
		o.SecondaryThreshold = d.SecondaryThreshold
	}
	if o.MinVectorSimilarity == 0 && o.MaxVectorSimilarity == 0 {
		o.MinVectorSimilarity = d.MinVectorSimilarity
		o.MaxVectorSimilarity = d.MaxVectorSimilarity
	}
	if o.MaxPairs <= 0 {
		o.MaxPairs = d.MaxPairs
	}
	if o.MaxConcurrentFetches <= 0 {
		o.MaxConcurrentFetches = d.MaxConcurrentFetches
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = d.FetchTimeout
	}
	if o.SubjectWindow <= 0 {
		o.SubjectWindow = d.SubjectWindow
	}
	return o
}

// DocumentPair is a candidate pair for conflict analysis.
type DocumentPair struct {
	Doc1             *types.SearchResult `json:"-"`
	Doc2             *types.SearchResult `json:"-"`
	Doc1ID           string              `json:"doc1_id"`
	Doc2ID           string              `json:"doc2_id"`
	Priority         float64             `json:"priority"`
	Tier             PairTier            `json:"tier"`
	VectorSimilarity float64             `json:"vector_similarity"`
}

// TieredPairs holds candidate pairs bucketed by priority. All lists every
// pair by priority descending.
type TieredPairs struct {
	Primary   []*DocumentPair `json:"primary"`
	Secondary []*DocumentPair `json:"secondary"`
	Tertiary  []*DocumentPair `json:"tertiary"`
	All       []*DocumentPair `json:"all"`
}

// ValueConflict is one pair of disagreeing values.
type ValueConflict struct {
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Value1   string `json:"value1"`
	Value2   string `json:"value2"`
}

// ConflictInfo describes the conflicts found between two documents.
type ConflictInfo struct {
	Type             string          `json:"type"`
	Confidence       float64         `json:"confidence"`
	Conflicts        []ValueConflict `json:"conflicts"`
	Tier             PairTier        `json:"tier"`
	VectorSimilarity float64         `json:"vector_similarity"`
}

// ConflictingPair is a pair of documents that disagree.
type ConflictingPair struct {
	Doc1ID string       `json:"doc1_id"`
	Doc2ID string       `json:"doc2_id"`
	Info   ConflictInfo `json:"info"`
}

// DocumentIDPair names two documents.
type DocumentIDPair struct {
	Doc1ID string `json:"doc1_id"`
	Doc2ID string `json:"doc2_id"`
}

// ConflictAnalysis is the outcome of DetectConflicts.
type ConflictAnalysis struct {
	ConflictingPairs      []ConflictingPair           `json:"conflicting_pairs"`
	ConflictCategories    map[string][]DocumentIDPair `json:"conflict_categories"`
	ResolutionSuggestions map[string]string           `json:"resolution_suggestions"`
	PairsConsidered       int                         `json:"pairs_considered"`
	PairsCompared         int                         `json:"pairs_compared"`
}

// NewConflictAnalysis returns an empty analysis.
func NewConflictAnalysis() *ConflictAnalysis {
	return &ConflictAnalysis{
		ConflictingPairs:      []ConflictingPair{},
		ConflictCategories:    make(map[string][]DocumentIDPair),
		ResolutionSuggestions: make(map[string]string),
	}
}

// ConflictSummary condenses an analysis.
type ConflictSummary struct {
	TotalConflicts        int            `json:"total_conflicts"`
	CategoryCounts        map[string]int `json:"category_counts"`
	MostCommonCategories  []string       `json:"most_common_categories"`
	ResolutionSuggestions []string       `json:"resolution_suggestions"`
}

// GetConflictSummary reports the total, per-category counts, the three most
// frequent categories and up to three resolution suggestions.
func (a *ConflictAnalysis) GetConflictSummary() ConflictSummary {
	summary := ConflictSummary{
		TotalConflicts:        len(a.ConflictingPairs),
		CategoryCounts:        make(map[string]int, len(a.ConflictCategories)),
		MostCommonCategories:  []string{},
		ResolutionSuggestions: []string{},
	}
	for category, pairs := range a.ConflictCategories {
		summary.CategoryCounts[category] = len(pairs)
	}

	categories := utils.SortedKeys(summary.CategoryCounts)
	sort.SliceStable(categories, func(i, j int) bool {
		return summary.CategoryCounts[categories[i]] > summary.CategoryCounts[categories[j]]
	})
	summary.MostCommonCategories = append(summary.MostCommonCategories, headStrings(categories, summaryCategoryLimit)...)

	for _, key := range headStrings(utils.SortedKeys(a.ResolutionSuggestions), summarySuggestionLimit) {
		summary.ResolutionSuggestions = append(summary.ResolutionSuggestions, a.ResolutionSuggestions[key])
	}
	return summary
}

// Involving returns the ids of documents in conflict with docID.
func (a *ConflictAnalysis) Involving(docID string) []string {
	out := []string{}
	for _, p := range a.ConflictingPairs {
		switch docID {
		case p.Doc1ID:
			out = append(out, p.Doc2ID)
		case p.Doc2ID:
			out = append(out, p.Doc1ID)
		}
	}
	return out
}

// ConflictDetector finds factual disagreements between documents.
type ConflictDetector struct {
	store     vectorstore.Store
	extractor nlp.EntityExtractor
	opts      ConflictOptions
	logger    *slog.Logger
}

// NewConflictDetector creates a detector. store may be nil, in which case
// pairs are not banded by vector similarity. extractor may be nil, in which
// case only pattern-matched values and the documents' own entities are used.
func NewConflictDetector(store vectorstore.Store, extractor nlp.EntityExtractor, opts ConflictOptions, logger *slog.Logger) *ConflictDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictDetector{
		store:     store,
		extractor: extractor,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// ShouldAnalyzeForConflicts rejects pairs where either text is near empty,
// both are the same document, or the texts are identical.
func (d *ConflictDetector) ShouldAnalyzeForConflicts(doc1, doc2 *types.SearchResult) bool {
	text1 := strings.TrimSpace(doc1.Text)
	text2 := strings.TrimSpace(doc2.Text)
	if len(text1) < d.opts.MinTextLength || len(text2) < d.opts.MinTextLength {
		return false
	}
	if doc1.Identity() == doc2.Identity() {
		return false
	}
	return text1 != text2
}

// GetTieredAnalysisPairs pairs every eligible pair of docs. A pair's priority
// is the mean of the two retrieval scores, each capped at 1.
func (d *ConflictDetector) GetTieredAnalysisPairs(docs []types.SearchResult) *TieredPairs {
	tiers := &TieredPairs{
		Primary:   []*DocumentPair{},
		Secondary: []*DocumentPair{},
		Tertiary:  []*DocumentPair{},
		All:       []*DocumentPair{},
	}
	for i := range docs {
		for j := i + 1; j < len(docs); j++ {
			if !d.ShouldAnalyzeForConflicts(&docs[i], &docs[j]) {
				continue
			}
			pair := &DocumentPair{
				Doc1:     &docs[i],
				Doc2:     &docs[j],
				Doc1ID:   docs[i].Identity(),
				Doc2ID:   docs[j].Identity(),
				Priority: (utils.Clamp(docs[i].Score, 0, 1) + utils.Clamp(docs[j].Score, 0, 1)) / 2,
			}
			switch {
			case pair.Priority >= d.opts.PrimaryThreshold:
				pair.Tier = PrimaryTier
				tiers.Primary = append(tiers.Primary, pair)
			case pair.Priority >= d.opts.SecondaryThreshold:
				pair.Tier = SecondaryTier
				tiers.Secondary = append(tiers.Secondary, pair)
			default:
				pair.Tier = TertiaryTier
				tiers.Tertiary = append(tiers.Tertiary, pair)
			}
			tiers.All = append(tiers.All, pair)
		}
	}
	for _, list := range [][]*DocumentPair{tiers.Primary, tiers.Secondary, tiers.Tertiary, tiers.All} {
		sortPairs(list, func(p *DocumentPair) float64 { return p.Priority })
	}
	return tiers
}

func sortPairs(pairs []*DocumentPair, key func(*DocumentPair) float64) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if key(pairs[i]) != key(pairs[j]) {
			return key(pairs[i]) > key(pairs[j])
		}
		if pairs[i].Doc1ID != pairs[j].Doc1ID {
			return pairs[i].Doc1ID < pairs[j].Doc1ID
		}
		return pairs[i].Doc2ID < pairs[j].Doc2ID
	})
}

// FetchEmbeddings fetches the vectors of ids with bounded concurrency and a
// timeout per fetch. Failed, timed-out and missing fetches are logged and
// left out of the map; they never fail the others.
func (d *ConflictDetector) FetchEmbeddings(ctx context.Context, ids []string) map[string][]float32 {
	embeddings := make(map[string][]float32, len(ids))
	if d.store == nil || len(ids) == 0 {
		return embeddings
	}

	fetches := make([]func() ([]float32, error), len(ids))
	for i, id := range ids {
		id := id
		fetches[i] = func() ([]float32, error) {
			return utils.CallWithTimeout(ctx, d.opts.FetchTimeout, func(ctx context.Context) ([]float32, error) {
				return d.store.GetEmbedding(ctx, id)
			})
		}
	}
	vectors, errs := utils.ExecuteWithResults(ctx, d.opts.MaxConcurrentFetches, fetches...)

	failed := 0
	for i, id := range ids {
		switch err := errs[i]; {
		case errors.Is(err, vectorstore.ErrNotFound):
			d.logger.Debug("No stored embedding", "doc_id", id)
		case err != nil:
			failed++
			d.logger.Warn("Embedding fetch failed", "doc_id", id, "error", err)
		case len(vectors[i]) == 0:
			d.logger.Debug("Empty stored embedding", "doc_id", id)
		default:
			embeddings[id] = vectors[i]
		}
	}
	d.logger.Debug("Fetched embeddings", "requested", len(ids), "fetched", len(embeddings), "failed", failed)
	return embeddings
}

// FilterByVectorSimilarity keeps pairs whose clipped cosine similarity lies
// within the conflict band, most similar first. Pairs missing an embedding
// count as similarity 0 and are excluded.
func (d *ConflictDetector) FilterByVectorSimilarity(ctx context.Context, pairs []*DocumentPair) []*DocumentPair {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range pairs {
		for _, id := range []string{p.Doc1ID, p.Doc2ID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	embeddings := d.FetchEmbeddings(ctx, ids)

	kept := make([]*DocumentPair, 0, len(pairs))
	for _, p := range pairs {
		v1, ok1 := embeddings[p.Doc1ID]
		v2, ok2 := embeddings[p.Doc2ID]
		if !ok1 || !ok2 {
			p.VectorSimilarity = 0
			continue
		}
		p.VectorSimilarity = utils.ClippedCosine(v1, v2)
		if p.VectorSimilarity >= d.opts.MinVectorSimilarity && p.VectorSimilarity <= d.opts.MaxVectorSimilarity {
			kept = append(kept, p)
		}
	}
	sortPairs(kept, func(p *DocumentPair) float64 { return p.VectorSimilarity })
	return kept
}

// DetectConflicts runs the pipeline over docs: pre-screen and tier pairs,
// band them by vector similarity when a store is configured, then compare
// the values each document states about the same subject.
func (d *ConflictDetector) DetectConflicts(ctx context.Context, docs []types.SearchResult) *ConflictAnalysis {
	analysis := NewConflictAnalysis()

	pairs := d.GetTieredAnalysisPairs(docs).All
	analysis.PairsConsidered = len(pairs)
	if len(pairs) > d.opts.MaxPairs {
		pairs = pairs[:d.opts.MaxPairs]
	}
	if d.store != nil {
		pairs = d.FilterByVectorSimilarity(ctx, pairs)
	}

	mentions := make(map[string][]valueMention)
	mentionsOf := func(doc *types.SearchResult) []valueMention {
		id := doc.Identity()
		if m, ok := mentions[id]; ok {
			return m
		}
		m := d.valueMentions(ctx, doc)
		mentions[id] = m
		return m
	}

	for _, pair := range pairs {
		if ctx.Err() != nil {
			d.logger.Warn("Conflict detection cancelled", "compared", analysis.PairsCompared, "error", ctx.Err())
			break
		}
		analysis.PairsCompared++

		conflicts := compareMentions(mentionsOf(pair.Doc1), mentionsOf(pair.Doc2))
		if len(conflicts) == 0 {
			continue
		}
		info := ConflictInfo{
			Type:             dominantCategory(conflicts),
			Confidence:       math.Min(1, baseConflictConfidence+extraConflictConfidence*float64(len(conflicts)-1)),
			Conflicts:        conflicts,
			Tier:             pair.Tier,
			VectorSimilarity: pair.VectorSimilarity,
		}
		analysis.ConflictingPairs = append(analysis.ConflictingPairs, ConflictingPair{Doc1ID: pair.Doc1ID, Doc2ID: pair.Doc2ID, Info: info})

		categorized := make(map[string]bool)
		for _, c := range conflicts {
			if !categorized[c.Category] {
				categorized[c.Category] = true
				analysis.ConflictCategories[c.Category] = append(analysis.ConflictCategories[c.Category], DocumentIDPair{Doc1ID: pair.Doc1ID, Doc2ID: pair.Doc2ID})
			}
		}
		first := conflicts[0]
		analysis.ResolutionSuggestions[pair.Doc1ID+" vs "+pair.Doc2ID] = fmt.Sprintf(
			"%s for %q differs: %s states %s, %s states %s. Confirm which source is current.",
			first.Category, first.Subject, pair.Doc1ID, first.Value1, pair.Doc2ID, first.Value2)
	}

	d.logger.Debug("Detected conflicts", "documents", len(docs), "pairs", analysis.PairsConsidered, "compared", analysis.PairsCompared, "conflicts", len(analysis.ConflictingPairs))
	return analysis
}

type valueMention struct {
	text    string
	value   nlp.Value
	subject map[string]struct{}
	label   string
}

// valueMentions collects the comparable values a document states, each with
// the content words just before it as its subject. Every occurrence of a
// value is its own mention, so a value repeated under two subjects counts
// for both.
func (d *ConflictDetector) valueMentions(ctx context.Context, doc *types.SearchResult) []valueMention {
	lower := strings.ToLower(doc.Text)
	used := make(map[int]struct{})
	var located []nlp.ValueMatch
	for _, m := range nlp.FindValueMatches(doc.Text) {
		// Offsets into lower, which differ from doc.Text only for non-ASCII case folds.
		m.Start = len(strings.ToLower(doc.Text[:m.Start]))
		used[m.Start] = struct{}{}
		located = append(located, m)
	}

	extra := append([]types.Entity(nil), doc.Entities...)
	if d.extractor != nil {
		extracted, err := d.extractor.ExtractEntities(ctx, doc.Text)
		if err != nil {
			d.logger.Warn("Entity extraction failed", "doc_id", doc.Identity(), "error", err)
		}
		extra = append(extra, extracted...)
	}
	for _, e := range extra {
		if pos := nextUnusedOccurrence(lower, strings.ToLower(e.Text), used); pos >= 0 {
			used[pos] = struct{}{}
			located = append(located, nlp.ValueMatch{Entity: e, Start: pos})
		}
	}

	seen := make(map[string]struct{})
	var out []valueMention
	for _, loc := range located {
		value, err := nlp.ParseValue(loc.Entity)
		if err != nil {
			continue
		}
		subjectWords := d.subjectBefore(lower[:loc.Start])
		if len(subjectWords) == 0 {
			continue
		}
		m := valueMention{
			text:    loc.Entity.Text,
			value:   value,
			subject: utils.NormalizedSet(subjectWords),
			label:   strings.Join(subjectWords, " "),
		}
		key := value.Label + "|" + m.label + "|" + value.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

// nextUnusedOccurrence returns the offset of the first occurrence of needle in
// text that is not in used, or -1.
func nextUnusedOccurrence(text, needle string, used map[int]struct{}) int {
	if needle == "" {
		return -1
	}
	from := 0
	for from <= len(text) {
		i := strings.Index(text[from:], needle)
		if i < 0 {
			return -1
		}
		pos := from + i
		if _, taken := used[pos]; !taken {
			return pos
		}
		from = pos + 1
	}
	return -1
}

// subjectBefore returns the last few content words of the clause ending at
// the end of prefix.
func (d *ConflictDetector) subjectBefore(prefix string) []string {
	if cut := strings.LastIndexAny(prefix, ".!?;\n"); cut >= 0 {
		prefix = prefix[cut+1:]
	}
	words := utils.ContentWords(prefix)
	if len(words) > d.opts.SubjectWindow {
		words = words[len(words)-d.opts.SubjectWindow:]
	}
	return words
}

// compareMentions reports values in the first document that disagree with
// every value the second states about an overlapping subject.
func compareMentions(first, second []valueMention) []ValueConflict {
	var conflicts []ValueConflict
	for _, m1 := range first {
		var (
			best      *valueMention
			bestScore float64
			agreed    bool
		)
		for i := range second {
			m2 := &second[i]
			if m1.value.Label != m2.value.Label || m1.value.Unit != m2.value.Unit {
				continue
			}
			overlap := utils.Jaccard(m1.subject, m2.subject)
			if overlap == 0 {
				continue
			}
			if m1.value.Equal(m2.value) {
				agreed = true
				break
			}
			if overlap > bestScore {
				best, bestScore = m2, overlap
			}
		}
		if agreed || best == nil {
			continue
		}
		conflicts = append(conflicts, ValueConflict{
			Category: strings.ToLower(m1.value.Label),
			Subject:  m1.label,
			Value1:   m1.text,
			Value2:   best.text,
		})
	}
	return conflicts
}

func dominantCategory(conflicts []ValueConflict) string {
	counts := make(map[string]int)
	for _, c := range conflicts {
		counts[c.Category]++
	}
	best := ""
	for _, category := range utils.SortedKeys(counts) {
		if best == "" || counts[category] > counts[best] {
			best = category
		}
	}
	return best
}
