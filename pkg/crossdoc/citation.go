package crossdoc

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// CitationType names the evidence behind a citation edge.
type CitationType string

const (
	ExplicitCitation   CitationType = "explicit_reference"
	ParentCitation     CitationType = "parent"
	MentionCitation    CitationType = "title_mention"
	IdentifierCitation CitationType = "shared_identifier"
)

var citationWeights = map[CitationType]float64{
	ExplicitCitation:   1.0,
	ParentCitation:     0.8,
	MentionCitation:    0.5,
	IdentifierCitation: 0.3,
}

// CitesRelationship labels citation edges in the derived graph.
const CitesRelationship types.RelationshipType = "cites"

// minMentionTitle keeps short titles such as "API" from matching everywhere.
const minMentionTitle = 5

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s)\]>"']+`)
	ticketPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}-\d+\b`)
)

// CitationNode is a document in the citation network.
type CitationNode struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Project string `json:"project,omitempty"`
	URL     string `json:"url,omitempty"`
}

// CitationEdge is a directed citation from Source to Target.
type CitationEdge struct {
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Type     CitationType `json:"type"`
	Weight   float64      `json:"weight"`
	Evidence string       `json:"evidence,omitempty"`
}

// CitationNetwork is the directed cross-reference graph of a batch.
// Scores are populated by CalculateCentralityScores.
type CitationNetwork struct {
	Nodes            map[string]CitationNode `json:"nodes"`
	Edges            []CitationEdge          `json:"edges"`
	AuthorityScores  map[string]float64      `json:"authority_scores"`
	HubScores        map[string]float64      `json:"hub_scores"`
	PageRankScores   map[string]float64      `json:"pagerank_scores"`
	CentralityMethod string                  `json:"centrality_method,omitempty"`

	graphOnce sync.Once
	graph     *graph.KnowledgeGraph
}

func newCitationNetwork() *CitationNetwork {
	return &CitationNetwork{
		Nodes:           make(map[string]CitationNode),
		Edges:           []CitationEdge{},
		AuthorityScores: make(map[string]float64),
		HubScores:       make(map[string]float64),
		PageRankScores:  make(map[string]float64),
	}
}

// NodeIDs returns the document ids in ascending order.
func (n *CitationNetwork) NodeIDs() []string {
	return utils.SortedKeys(n.Nodes)
}

// Graph returns the network as a knowledge graph of document nodes joined by
// cites edges. It is built on first use and cached.
func (n *CitationNetwork) Graph() *graph.KnowledgeGraph {
	n.graphOnce.Do(func() {
		g := graph.NewKnowledgeGraph(nil)
		for _, id := range n.NodeIDs() {
			node := n.Nodes[id]
			g.AddNode(&types.GraphNode{ID: id, NodeType: types.DocumentNodeType, Title: node.Title, DocumentID: id})
		}
		for _, e := range n.Edges {
			g.AddEdge(&types.GraphEdge{SourceID: e.Source, TargetID: e.Target, RelationshipType: CitesRelationship, Weight: e.Weight, Confidence: e.Weight})
		}
		n.graph = g
	})
	return n.graph
}

// Cites returns the documents docID cites, strongest first.
func (n *CitationNetwork) Cites(docID string) []string {
	return n.linked(func(e CitationEdge) (string, bool) { return e.Target, e.Source == docID })
}

// CitedBy returns the documents citing docID, strongest first.
func (n *CitationNetwork) CitedBy(docID string) []string {
	return n.linked(func(e CitationEdge) (string, bool) { return e.Source, e.Target == docID })
}

func (n *CitationNetwork) linked(match func(CitationEdge) (string, bool)) []string {
	var edges []CitationEdge
	for _, e := range n.Edges {
		if _, ok := match(e); ok {
			edges = append(edges, e)
		}
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		id, _ := match(e)
		out = append(out, id)
	}
	return out
}

// DocumentScore pairs a document with a score.
type DocumentScore struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

// CitationAnalyzer builds citation networks.
type CitationAnalyzer struct {
	centrality graph.CentralityOptions
	logger     *slog.Logger
}

// NewCitationAnalyzer creates an analyzer.
func NewCitationAnalyzer(opts graph.CentralityOptions, logger *slog.Logger) *CitationAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CitationAnalyzer{centrality: opts, logger: logger}
}

// BuildCitationNetwork detects citations among docs and scores the network.
// Edges come from explicit cross references, parent links, title mentions
// in text and identifiers (URLs, ticket keys) shared by two documents.
// Multiple signals between the same pair keep the strongest.
func (a *CitationAnalyzer) BuildCitationNetwork(docs []types.SearchResult) *CitationNetwork {
	network := newCitationNetwork()
	for i := range docs {
		d := &docs[i]
		network.Nodes[d.Identity()] = CitationNode{
			ID:      d.Identity(),
			Title:   d.DisplayTitle(),
			Project: d.ProjectName,
			URL:     d.SourceURL,
		}
	}

	type pairKey struct{ source, target string }
	best := make(map[pairKey]CitationEdge)
	var order []pairKey
	add := func(source, target string, kind CitationType, evidence string) {
		if source == target {
			return
		}
		if _, ok := network.Nodes[target]; !ok {
			return
		}
		key := pairKey{source, target}
		edge := CitationEdge{Source: source, Target: target, Type: kind, Weight: citationWeights[kind], Evidence: evidence}
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || edge.Weight > existing.Weight {
			best[key] = edge
		}
	}

	byURL := make(map[string]string)
	byTitle := make(map[string]string)
	for i := range docs {
		d := &docs[i]
		if u := normalizeURL(d.SourceURL); u != "" {
			if _, taken := byURL[u]; !taken {
				byURL[u] = d.Identity()
			}
		}
		for _, title := range []string{d.SourceTitle, d.SectionTitle} {
			if k := utils.NormalizeKey(title); k != "" {
				if _, taken := byTitle[k]; !taken {
					byTitle[k] = d.Identity()
				}
			}
		}
	}

	identifiers := make([]map[string]struct{}, len(docs))
	for i := range docs {
		d := &docs[i]
		id := d.Identity()

		for _, ref := range d.CrossReferences {
			if target, ok := byURL[normalizeURL(ref.URL)]; ok && ref.URL != "" {
				add(id, target, ExplicitCitation, ref.URL)
				continue
			}
			if target, ok := byTitle[utils.NormalizeKey(ref.Text)]; ok {
				add(id, target, ExplicitCitation, ref.Text)
			}
		}

		if d.ParentID != "" {
			add(id, d.ParentID, ParentCitation, d.ParentID)
		}

		text := utils.NormalizeKey(d.Text)
		for j := range docs {
			other := &docs[j]
			if i == j || other.DocumentKey() == d.DocumentKey() {
				continue
			}
			for _, title := range []string{other.SourceTitle, other.SectionTitle} {
				k := utils.NormalizeKey(title)
				if len(k) >= minMentionTitle && strings.Contains(text, k) {
					add(id, other.Identity(), MentionCitation, title)
					break
				}
			}
		}

		identifiers[i] = extractIdentifiers(d.Text)
	}

	for i := range docs {
		for j := i + 1; j < len(docs); j++ {
			shared := utils.Intersection(identifiers[i], identifiers[j])
			if len(shared) == 0 {
				continue
			}
			first, second := docs[i].Identity(), docs[j].Identity()
			add(first, second, IdentifierCitation, shared[0])
			add(second, first, IdentifierCitation, shared[0])
		}
	}

	for _, key := range order {
		network.Edges = append(network.Edges, best[key])
	}
	a.CalculateCentralityScores(network)
	a.logger.Debug("Built citation network", "documents", len(network.Nodes), "edges", len(network.Edges), "method", network.CentralityMethod)
	return network
}

// CalculateCentralityScores fills the authority, hub and PageRank scores.
// Without edges, or when the iterative methods fail, every score is the
// document's degree centrality.
func (a *CitationAnalyzer) CalculateCentralityScores(network *CitationNetwork) {
	links := make([]graph.Link, 0, len(network.Edges))
	for _, e := range network.Edges {
		links = append(links, graph.Link{Source: e.Source, Target: e.Target, Weight: e.Weight})
	}
	scores := graph.ComputeCentrality(network.NodeIDs(), links, a.centrality, a.logger)
	network.AuthorityScores = scores.Authority
	network.HubScores = scores.Hub
	network.PageRankScores = scores.PageRank
	network.CentralityMethod = scores.Method
}

// GetMostAuthoritativeDocuments returns up to limit documents by authority
// descending, ties broken by id. A non-positive limit returns all of them.
func (a *CitationAnalyzer) GetMostAuthoritativeDocuments(network *CitationNetwork, limit int) []DocumentScore {
	out := make([]DocumentScore, 0, len(network.Nodes))
	for _, id := range network.NodeIDs() {
		out = append(out, DocumentScore{DocumentID: id, Score: network.AuthorityScores[id]})
	}
	return rankScores(out, limit)
}

// GetMostConnectedDocuments returns up to limit documents by total degree
// (citations made plus received) descending, ties broken by id.
func (a *CitationAnalyzer) GetMostConnectedDocuments(network *CitationNetwork, limit int) []DocumentScore {
	degree := make(map[string]int, len(network.Nodes))
	for _, e := range network.Edges {
		degree[e.Source]++
		degree[e.Target]++
	}
	out := make([]DocumentScore, 0, len(network.Nodes))
	for _, id := range network.NodeIDs() {
		out = append(out, DocumentScore{DocumentID: id, Score: float64(degree[id])})
	}
	return rankScores(out, limit)
}

func rankScores(scores []DocumentScore, limit int) []DocumentScore {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].DocumentID < scores[j].DocumentID
	})
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

func normalizeURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimRight(u, "/")
}

// extractIdentifiers collects URLs and ticket keys such as AUTH-123.
func extractIdentifiers(text string) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, u := range urlPattern.FindAllString(text, -1) {
		if n := normalizeURL(strings.TrimRight(u, ".,;:")); n != "" {
			ids[n] = struct{}{}
		}
	}
	for _, t := range ticketPattern.FindAllString(text, -1) {
		ids[t] = struct{}{}
	}
	return ids
}
