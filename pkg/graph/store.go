package graph

import (
	"log/slog"
	"sort"

	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/utils"
)

// Neighbor is an adjacent node together with the edge that connects it.
type Neighbor struct {
	ID   string
	Edge *types.GraphEdge
}

// GraphStatistics summarises the shape of a knowledge graph.
type GraphStatistics struct {
	TotalNodes             int            `json:"total_nodes" yaml:"total_nodes"`
	TotalEdges             int            `json:"total_edges" yaml:"total_edges"`
	NodeTypeCounts         map[string]int `json:"node_types" yaml:"node_types"`
	RelationshipTypeCounts map[string]int `json:"relationship_types" yaml:"relationship_types"`
	ConnectedComponents    int            `json:"connected_components" yaml:"connected_components"`
	AverageDegree          float64        `json:"average_degree" yaml:"average_degree"`
	CentralityMethod       string         `json:"centrality_method,omitempty" yaml:"centrality_method,omitempty"`
}

// KnowledgeGraph is an in-memory typed multigraph with lookup indices by node
// type, entity and topic. It is built and queried by a single caller and is
// not safe for concurrent mutation.
type KnowledgeGraph struct {
	nodes     map[string]*types.GraphNode
	nodeOrder []string

	edges     map[types.EdgeKey]*types.GraphEdge
	edgeOrder []types.EdgeKey
	outgoing  map[string][]types.EdgeKey
	incoming  map[string][]types.EdgeKey

	byType   map[types.NodeType][]string
	byEntity map[string][]string
	byTopic  map[string][]string

	centralityMethod string
	logger           *slog.Logger
}

// NewKnowledgeGraph creates an empty graph. A nil logger uses slog.Default().
func NewKnowledgeGraph(logger *slog.Logger) *KnowledgeGraph {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeGraph{
		nodes:    make(map[string]*types.GraphNode),
		edges:    make(map[types.EdgeKey]*types.GraphEdge),
		outgoing: make(map[string][]types.EdgeKey),
		incoming: make(map[string][]types.EdgeKey),
		byType:   make(map[types.NodeType][]string),
		byEntity: make(map[string][]string),
		byTopic:  make(map[string][]string),
		logger:   logger,
	}
}

// AddNode inserts node and indexes it. It returns false, leaving the existing
// node untouched, when a node with the same id is already present or the node
// is invalid.
func (g *KnowledgeGraph) AddNode(node *types.GraphNode) bool {
	if node == nil || node.Validate() != nil {
		return false
	}
	if _, exists := g.nodes[node.ID]; exists {
		return false
	}

	g.nodes[node.ID] = node
	g.nodeOrder = append(g.nodeOrder, node.ID)
	g.byType[node.NodeType] = append(g.byType[node.NodeType], node.ID)

	for key := range utils.NormalizedSet(node.Entities) {
		g.byEntity[key] = append(g.byEntity[key], node.ID)
	}
	for key := range utils.NormalizedSet(node.Topics) {
		g.byTopic[key] = append(g.byTopic[key], node.ID)
	}
	return true
}

// AddEdge inserts edge. It returns false when either endpoint is missing or
// the edge is invalid. Re-adding an existing (source, target, relationship)
// key overwrites weight and confidence.
func (g *KnowledgeGraph) AddEdge(edge *types.GraphEdge) bool {
	if edge == nil || edge.Validate() != nil {
		return false
	}
	if _, ok := g.nodes[edge.SourceID]; !ok {
		return false
	}
	if _, ok := g.nodes[edge.TargetID]; !ok {
		return false
	}

	key := edge.Key()
	if existing, ok := g.edges[key]; ok {
		existing.Weight = edge.Weight
		existing.Confidence = edge.Confidence
		return true
	}

	stored := *edge
	g.edges[key] = &stored
	g.edgeOrder = append(g.edgeOrder, key)
	g.outgoing[edge.SourceID] = append(g.outgoing[edge.SourceID], key)
	g.incoming[edge.TargetID] = append(g.incoming[edge.TargetID], key)
	return true
}

// GetNode returns the node with id, or nil.
func (g *KnowledgeGraph) GetNode(id string) *types.GraphNode {
	return g.nodes[id]
}

// GetEdge returns the edge with the given key, or nil.
func (g *KnowledgeGraph) GetEdge(key types.EdgeKey) *types.GraphEdge {
	return g.edges[key]
}

// Nodes returns all nodes in insertion order.
func (g *KnowledgeGraph) Nodes() []*types.GraphNode {
	out := make([]*types.GraphNode, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *KnowledgeGraph) Edges() []*types.GraphEdge {
	out := make([]*types.GraphEdge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		out = append(out, g.edges[key])
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *KnowledgeGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *KnowledgeGraph) EdgeCount() int { return len(g.edges) }

// FindNodesByType returns the nodes of type t in insertion order.
func (g *KnowledgeGraph) FindNodesByType(t types.NodeType) []*types.GraphNode {
	return g.lookup(g.byType[t])
}

// FindNodesByEntity returns nodes listing entity, matched case-insensitively.
func (g *KnowledgeGraph) FindNodesByEntity(entity string) []*types.GraphNode {
	return g.lookup(g.byEntity[utils.NormalizeKey(entity)])
}

// FindNodesByTopic returns nodes listing topic, matched case-insensitively.
func (g *KnowledgeGraph) FindNodesByTopic(topic string) []*types.GraphNode {
	return g.lookup(g.byTopic[utils.NormalizeKey(topic)])
}

func (g *KnowledgeGraph) lookup(ids []string) []*types.GraphNode {
	out := make([]*types.GraphNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

// GetNeighbors returns nodes adjacent to id through outgoing or incoming
// edges, optionally restricted to the given relationship types. The result is
// ordered by edge weight descending, then neighbor id ascending.
func (g *KnowledgeGraph) GetNeighbors(id string, filter ...types.RelationshipType) []Neighbor {
	allowed := make(map[types.RelationshipType]struct{}, len(filter))
	for _, rel := range filter {
		allowed[rel] = struct{}{}
	}
	keep := func(edge *types.GraphEdge) bool {
		if len(allowed) == 0 {
			return true
		}
		_, ok := allowed[edge.RelationshipType]
		return ok
	}

	var out []Neighbor
	for _, key := range g.outgoing[id] {
		if edge := g.edges[key]; keep(edge) {
			out = append(out, Neighbor{ID: edge.TargetID, Edge: edge})
		}
	}
	for _, key := range g.incoming[id] {
		if edge := g.edges[key]; keep(edge) {
			out = append(out, Neighbor{ID: edge.SourceID, Edge: edge})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Edge.Weight != out[j].Edge.Weight {
			return out[i].Edge.Weight > out[j].Edge.Weight
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Edge.RelationshipType < out[j].Edge.RelationshipType
	})
	return out
}

// Degree returns the number of distinct nodes adjacent to id.
func (g *KnowledgeGraph) Degree(id string) int {
	seen := make(map[string]struct{})
	for _, key := range g.outgoing[id] {
		if key.TargetID != id {
			seen[key.TargetID] = struct{}{}
		}
	}
	for _, key := range g.incoming[id] {
		if key.SourceID != id {
			seen[key.SourceID] = struct{}{}
		}
	}
	return len(seen)
}

// ShortestPath returns the hop-minimal path from one node to another,
// ignoring edge direction, or nil when they are not connected.
func (g *KnowledgeGraph) ShortestPath(from, to string) []string {
	if _, ok := g.nodes[from]; !ok {
		return nil
	}
	if _, ok := g.nodes[to]; !ok {
		return nil
	}
	if from == to {
		return []string{from}
	}

	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, nb := range g.GetNeighbors(current) {
			if _, seen := parent[nb.ID]; seen {
				continue
			}
			parent[nb.ID] = current
			if nb.ID == to {
				var path []string
				for at := to; at != ""; at = parent[at] {
					path = append([]string{at}, path...)
				}
				return path
			}
			queue = append(queue, nb.ID)
		}
	}
	return nil
}

// ConnectedComponents counts weakly connected components.
func (g *KnowledgeGraph) ConnectedComponents() int {
	visited := make(map[string]bool, len(g.nodes))
	components := 0

	for _, id := range g.nodeOrder {
		if visited[id] {
			continue
		}
		components++
		stack := []string{id}
		visited[id] = true
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, key := range g.outgoing[current] {
				if !visited[key.TargetID] {
					visited[key.TargetID] = true
					stack = append(stack, key.TargetID)
				}
			}
			for _, key := range g.incoming[current] {
				if !visited[key.SourceID] {
					visited[key.SourceID] = true
					stack = append(stack, key.SourceID)
				}
			}
		}
	}
	return components
}

// GetStatistics reports node and edge counts by type, connected components
// and average degree.
func (g *KnowledgeGraph) GetStatistics() *GraphStatistics {
	stats := &GraphStatistics{
		TotalNodes:             len(g.nodes),
		TotalEdges:             len(g.edges),
		NodeTypeCounts:         make(map[string]int),
		RelationshipTypeCounts: make(map[string]int),
		ConnectedComponents:    g.ConnectedComponents(),
		CentralityMethod:       g.centralityMethod,
	}
	for t, ids := range g.byType {
		stats.NodeTypeCounts[string(t)] = len(ids)
	}
	for key := range g.edges {
		stats.RelationshipTypeCounts[string(key.RelationshipType)]++
	}
	if len(g.nodes) > 0 {
		stats.AverageDegree = 2 * float64(len(g.edges)) / float64(len(g.nodes))
	}
	return stats
}

// CentralityComputed reports whether CalculateCentralityScores has run.
func (g *KnowledgeGraph) CentralityComputed() bool {
	return g.centralityMethod != ""
}

// CalculateCentralityScores assigns centrality, hub and authority scores to
// every node. It never fails: when the iterative methods cannot produce
// finite, converged scores every node falls back to degree centrality.
func (g *KnowledgeGraph) CalculateCentralityScores() {
	links := make([]Link, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		links = append(links, Link{Source: key.SourceID, Target: key.TargetID, Weight: g.edges[key].Weight})
	}

	scores := ComputeCentrality(g.nodeOrder, links, DefaultCentralityOptions(), g.logger)
	for _, id := range g.nodeOrder {
		node := g.nodes[id]
		node.CentralityScore = scores.Centrality[id]
		node.HubScore = scores.Hub[id]
		node.AuthorityScore = scores.Authority[id]
	}
	g.centralityMethod = scores.Method
}
