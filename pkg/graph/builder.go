package graph

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// Node id prefixes produced by the builder.
const (
	DocumentPrefix = "doc:"
	SectionPrefix  = "section:"
	EntityPrefix   = "entity:"
	TopicPrefix    = "topic:"
)

const sectionTextLimit = 500

// BuilderOptions controls which terms are promoted to graph nodes.
type BuilderOptions struct {
	// MinDocumentFrequency is the number of distinct documents a term must
	// appear in before it becomes an entity or topic node.
	MinDocumentFrequency int
	// SimilarDocumentThreshold is the promoted-term Jaccard overlap at which
	// two documents are linked with similar_to.
	SimilarDocumentThreshold float64
}

// DefaultBuilderOptions promotes terms seen in at least two documents and links
// documents whose promoted terms overlap by 0.3 or more.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{MinDocumentFrequency: 2, SimilarDocumentThreshold: 0.3}
}

// Builder turns a batch of search results into a KnowledgeGraph.
type Builder struct {
	opts   BuilderOptions
	logger *slog.Logger
}

// NewBuilder creates a builder. Non-positive option values take their defaults.
func NewBuilder(opts BuilderOptions, logger *slog.Logger) *Builder {
	defaults := DefaultBuilderOptions()
	if opts.MinDocumentFrequency <= 0 {
		opts.MinDocumentFrequency = defaults.MinDocumentFrequency
	}
	if opts.SimilarDocumentThreshold <= 0 {
		opts.SimilarDocumentThreshold = defaults.SimilarDocumentThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{opts: opts, logger: logger}
}

type termInfo struct {
	key       string
	title     string
	documents map[string]struct{}
}

type documentGroup struct {
	key      string
	title    string
	sections []types.SearchResult
}

// Build creates one document node per source document, one section node per
// result and promotes entities and topics that recur across documents.
// Results are expected to have passed types.NormalizeResults.
func (b *Builder) Build(results []types.SearchResult) *KnowledgeGraph {
	g := NewKnowledgeGraph(b.logger)

	docs := groupByDocument(results)
	resultIDs := make(map[string]struct{}, len(results))
	for _, r := range results {
		resultIDs[r.ID] = struct{}{}
	}

	entities := make(map[string]*termInfo)
	topics := make(map[string]*termInfo)
	var entityOrder, topicOrder []string

	for _, doc := range docs {
		docNode := &types.GraphNode{
			ID:         DocumentPrefix + doc.key,
			NodeType:   types.DocumentNodeType,
			Title:      doc.title,
			DocumentID: doc.key,
		}
		var docEntities, docTopics, docKeywords []string

		for _, r := range doc.sections {
			section := &types.GraphNode{
				ID:         SectionPrefix + r.ID,
				NodeType:   types.SectionNodeType,
				Title:      r.DisplayTitle(),
				DocumentID: doc.key,
				Text:       utils.Truncate(strings.TrimSpace(r.Text), sectionTextLimit),
				Depth:      r.Depth,
				Entities:   utils.UniqueStrings(r.EntityTexts()),
				Topics:     utils.UniqueStrings(r.TopicTexts()),
				Keywords:   utils.UniqueStrings(r.Keywords),
			}
			g.AddNode(section)

			docEntities = append(docEntities, section.Entities...)
			docTopics = append(docTopics, section.Topics...)
			docKeywords = append(docKeywords, section.Keywords...)

			for _, e := range section.Entities {
				entityOrder = recordTerm(entities, entityOrder, e, doc.key)
			}
			for _, t := range section.Topics {
				topicOrder = recordTerm(topics, topicOrder, t, doc.key)
			}
		}

		docNode.Entities = utils.UniqueStrings(docEntities)
		docNode.Topics = utils.UniqueStrings(docTopics)
		docNode.Keywords = utils.UniqueStrings(docKeywords)
		g.AddNode(docNode)

		for _, r := range doc.sections {
			g.AddEdge(&types.GraphEdge{
				SourceID:         docNode.ID,
				TargetID:         SectionPrefix + r.ID,
				RelationshipType: types.ContainsRelationship,
				Weight:           1.0,
				Confidence:       1.0,
			})
		}
	}

	for _, r := range results {
		if r.ParentID == "" || r.ParentID == r.ID {
			continue
		}
		if _, ok := resultIDs[r.ParentID]; ok {
			g.AddEdge(&types.GraphEdge{
				SourceID:         SectionPrefix + r.ParentID,
				TargetID:         SectionPrefix + r.ID,
				RelationshipType: types.ContainsRelationship,
				Weight:           0.9,
				Confidence:       1.0,
			})
		}
	}

	promotedEntities := b.promote(g, entities, entityOrder, types.EntityNodeType)
	promotedTopics := b.promote(g, topics, topicOrder, types.TopicNodeType)

	b.linkMentions(g, results, promotedEntities, promotedTopics)
	b.linkSimilarDocuments(g, docs, promotedEntities, promotedTopics)

	b.logger.Debug("Built knowledge graph",
		"documents", len(docs),
		"sections", len(results),
		"entities", len(promotedEntities),
		"topics", len(promotedTopics),
		"edges", g.EdgeCount())
	return g
}

func groupByDocument(results []types.SearchResult) []*documentGroup {
	index := make(map[string]*documentGroup)
	var order []*documentGroup
	for _, r := range results {
		key := r.DocumentKey()
		doc, ok := index[key]
		if !ok {
			title := r.SourceTitle
			if title == "" {
				title = key
			}
			doc = &documentGroup{key: key, title: title}
			index[key] = doc
			order = append(order, doc)
		}
		doc.sections = append(doc.sections, r)
	}
	return order
}

func recordTerm(terms map[string]*termInfo, order []string, text, docKey string) []string {
	key := utils.NormalizeKey(text)
	if key == "" {
		return order
	}
	info, ok := terms[key]
	if !ok {
		info = &termInfo{key: key, title: strings.TrimSpace(text), documents: make(map[string]struct{})}
		terms[key] = info
		order = append(order, key)
	}
	info.documents[docKey] = struct{}{}
	return order
}

// promote adds a node for every term seen in enough distinct documents and
// returns the promoted node ids keyed by normalized term.
func (b *Builder) promote(g *KnowledgeGraph, terms map[string]*termInfo, order []string, nodeType types.NodeType) map[string]string {
	promoted := make(map[string]string)
	for _, key := range order {
		info := terms[key]
		if len(info.documents) < b.opts.MinDocumentFrequency {
			continue
		}
		node := &types.GraphNode{NodeType: nodeType, Title: info.title}
		if nodeType == types.EntityNodeType {
			node.ID = EntityPrefix + key
			node.Entities = []string{info.title}
		} else {
			node.ID = TopicPrefix + key
			node.Topics = []string{info.title}
		}
		if g.AddNode(node) {
			promoted[key] = node.ID
		}
	}
	return promoted
}

type termPair struct{ a, b string }

func (b *Builder) linkMentions(g *KnowledgeGraph, results []types.SearchResult, entities, topics map[string]string) {
	cooccurrence := make(map[termPair]int)
	sectionsWith := make(map[string]int)
	var pairOrder []termPair

	for _, r := range results {
		sectionID := SectionPrefix + r.ID
		lowerText := strings.ToLower(r.Text)
		var present []string

		for _, e := range r.Entities {
			key := utils.NormalizeKey(e.Text)
			target, ok := entities[key]
			if !ok {
				continue
			}
			weight, confidence := mentionSalience(lowerText, key)
			g.AddEdge(&types.GraphEdge{
				SourceID:         sectionID,
				TargetID:         target,
				RelationshipType: types.MentionsRelationship,
				Weight:           weight,
				Confidence:       confidence,
			})
			present = append(present, target)
		}

		for _, t := range r.Topics {
			key := utils.NormalizeKey(t.Text)
			target, ok := topics[key]
			if !ok {
				continue
			}
			weight, confidence := mentionSalience(lowerText, key)
			if t.Score > 0 {
				weight = utils.Clamp(t.Score, 0.1, 1.0)
			}
			g.AddEdge(&types.GraphEdge{
				SourceID:         sectionID,
				TargetID:         target,
				RelationshipType: types.MentionsRelationship,
				Weight:           weight,
				Confidence:       confidence,
			})
			present = append(present, target)
		}

		present = utils.UniqueStrings(present)
		sort.Strings(present)
		for _, id := range present {
			sectionsWith[id]++
		}
		for i := 0; i < len(present); i++ {
			for j := i + 1; j < len(present); j++ {
				pair := termPair{present[i], present[j]}
				if cooccurrence[pair] == 0 {
					pairOrder = append(pairOrder, pair)
				}
				cooccurrence[pair]++
			}
		}
	}

	for _, pair := range pairOrder {
		together := cooccurrence[pair]
		union := sectionsWith[pair.a] + sectionsWith[pair.b] - together
		if union <= 0 {
			continue
		}
		weight := float64(together) / float64(union)
		g.AddEdge(&types.GraphEdge{
			SourceID:         pair.a,
			TargetID:         pair.b,
			RelationshipType: types.CoOccursRelationship,
			Weight:           weight,
			Confidence:       weight,
		})
	}
}

// mentionSalience grows with how often the term occurs in the section text.
func mentionSalience(lowerText, key string) (weight, confidence float64) {
	occurrences := strings.Count(lowerText, key)
	if occurrences == 0 {
		return 0.5, 0.7
	}
	return 0.5 + 0.5*utils.Clamp(float64(occurrences)/3, 0, 1), 0.9
}

func (b *Builder) linkSimilarDocuments(g *KnowledgeGraph, docs []*documentGroup, entities, topics map[string]string) {
	if len(entities)+len(topics) == 0 {
		return
	}

	terms := make([]map[string]struct{}, len(docs))
	for i, doc := range docs {
		set := make(map[string]struct{})
		for _, r := range doc.sections {
			for _, e := range r.Entities {
				if id, ok := entities[utils.NormalizeKey(e.Text)]; ok {
					set[id] = struct{}{}
				}
			}
			for _, t := range r.Topics {
				if id, ok := topics[utils.NormalizeKey(t.Text)]; ok {
					set[id] = struct{}{}
				}
			}
		}
		terms[i] = set
	}

	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			overlap := utils.Jaccard(terms[i], terms[j])
			if overlap < b.opts.SimilarDocumentThreshold {
				continue
			}
			g.AddEdge(&types.GraphEdge{
				SourceID:         DocumentPrefix + docs[i].key,
				TargetID:         DocumentPrefix + docs[j].key,
				RelationshipType: types.SimilarToRelationship,
				Weight:           overlap,
				Confidence:       overlap,
			})
		}
	}
}
