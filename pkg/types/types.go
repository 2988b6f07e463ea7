package types

import (
	"errors"
	"fmt"
	"math"
)

// Validation errors
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrInvalidWeight    = errors.New("weight must be finite and non-negative")
	ErrUnusableResult   = errors.New("search result has no id, title or text")
	ErrUnknownNodeType  = errors.New("unknown node type")
	ErrMissingEndpoints = errors.New("edge source and target are required")
)

// NodeType represents the type of a graph node.
type NodeType string

const (
	// DocumentNodeType represents a whole source document.
	DocumentNodeType NodeType = "document"
	// SectionNodeType represents one search result item within a document.
	SectionNodeType NodeType = "section"
	// EntityNodeType represents a named entity recurring across documents.
	EntityNodeType NodeType = "entity"
	// TopicNodeType represents a topic recurring across documents.
	TopicNodeType NodeType = "topic"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case DocumentNodeType, SectionNodeType, EntityNodeType, TopicNodeType:
		return true
	}
	return false
}

// ParseNodeType converts s into a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
	}
	return t, nil
}

// RelationshipType labels a directed edge. The set is open; the constants
// below are the ones the builder produces.
type RelationshipType string

const (
	ContainsRelationship  RelationshipType = "contains"
	MentionsRelationship  RelationshipType = "mentions"
	SimilarToRelationship RelationshipType = "similar_to"
	CoOccursRelationship  RelationshipType = "co_occurs"
	RelatesToRelationship RelationshipType = "relates_to"
)

// GraphNode is a vertex in the knowledge graph. Centrality, hub and authority
// scores are written only by centrality computation and are never negative.
type GraphNode struct {
	ID              string   `json:"id" yaml:"id"`
	NodeType        NodeType `json:"node_type" yaml:"node_type"`
	Title           string   `json:"title" yaml:"title"`
	DocumentID      string   `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Text            string   `json:"text,omitempty" yaml:"text,omitempty"`
	Depth           int      `json:"depth,omitempty" yaml:"depth,omitempty"`
	Entities        []string `json:"entities,omitempty" yaml:"entities,omitempty"`
	Topics          []string `json:"topics,omitempty" yaml:"topics,omitempty"`
	Keywords        []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	CentralityScore float64  `json:"centrality_score" yaml:"centrality_score"`
	HubScore        float64  `json:"hub_score" yaml:"hub_score"`
	AuthorityScore  float64  `json:"authority_score" yaml:"authority_score"`
}

// Validate checks if the GraphNode has all required fields set.
func (n *GraphNode) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if !n.NodeType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownNodeType, n.NodeType)
	}
	return nil
}

// GraphEdge is a directed, weighted relationship. Its identity is the
// (SourceID, TargetID, RelationshipType) triple.
type GraphEdge struct {
	SourceID         string           `json:"source_id" yaml:"source_id"`
	TargetID         string           `json:"target_id" yaml:"target_id"`
	RelationshipType RelationshipType `json:"relationship_type" yaml:"relationship_type"`
	Weight           float64          `json:"weight" yaml:"weight"`
	Confidence       float64          `json:"confidence" yaml:"confidence"`
}

// EdgeKey identifies an edge within a graph.
type EdgeKey struct {
	SourceID         string
	TargetID         string
	RelationshipType RelationshipType
}

// Key returns the identity of the edge.
func (e *GraphEdge) Key() EdgeKey {
	return EdgeKey{SourceID: e.SourceID, TargetID: e.TargetID, RelationshipType: e.RelationshipType}
}

// Validate checks endpoints and weight.
func (e *GraphEdge) Validate() error {
	if e.SourceID == "" || e.TargetID == "" {
		return ErrMissingEndpoints
	}
	if e.Weight < 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
		return ErrInvalidWeight
	}
	return nil
}

// TraversalResult is one path produced by a graph traversal, ending at the
// last node of Path.
type TraversalResult struct {
	Nodes         []*GraphNode `json:"nodes"`
	Path          []string     `json:"path"`
	TotalWeight   float64      `json:"total_weight"`
	SemanticScore float64      `json:"semantic_score"`
	HopCount      int          `json:"hop_count"`
	ReasoningPath []string     `json:"reasoning_path"`
}

// Target returns the node the path ends at, or nil for an empty result.
func (r *TraversalResult) Target() *GraphNode {
	if len(r.Nodes) == 0 {
		return nil
	}
	return r.Nodes[len(r.Nodes)-1]
}
