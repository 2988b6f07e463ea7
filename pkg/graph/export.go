package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/docgraph/pkg/types"
)

// ExportFormat names a serialisation of a knowledge graph.
type ExportFormat string

const (
	FormatJSON    ExportFormat = "json"
	FormatYAML    ExportFormat = "yaml"
	FormatParquet ExportFormat = "parquet"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseExportFormat converts s into an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatParquet:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ExportedNode is the serialised form of a node.
type ExportedNode struct {
	ID         string  `json:"id" yaml:"id"`
	Type       string  `json:"type" yaml:"type"`
	Title      string  `json:"title" yaml:"title"`
	Centrality float64 `json:"centrality" yaml:"centrality"`
	DocumentID string  `json:"document_id,omitempty" yaml:"document_id,omitempty"`
}

// ExportedEdge is the serialised form of an edge.
type ExportedEdge struct {
	Source       string  `json:"source" yaml:"source"`
	Target       string  `json:"target" yaml:"target"`
	Relationship string  `json:"relationship" yaml:"relationship"`
	Weight       float64 `json:"weight" yaml:"weight"`
}

// ExportedGraph is the document written by ExportGraph.
type ExportedGraph struct {
	Nodes []ExportedNode `json:"nodes" yaml:"nodes"`
	Edges []ExportedEdge `json:"edges" yaml:"edges"`
}

// graphRow flattens nodes and edges into one parquet schema; Kind tells them apart.
type graphRow struct {
	Kind         string  `parquet:"kind"`
	ID           string  `parquet:"id"`
	Type         string  `parquet:"type"`
	Title        string  `parquet:"title"`
	Centrality   float64 `parquet:"centrality"`
	DocumentID   string  `parquet:"document_id"`
	Source       string  `parquet:"source"`
	Target       string  `parquet:"target"`
	Relationship string  `parquet:"relationship"`
	Weight       float64 `parquet:"weight"`
}

const (
	rowKindNode = "node"
	rowKindEdge = "edge"
)

// Export snapshots g into its serialisable form.
func Export(g *KnowledgeGraph) *ExportedGraph {
	out := &ExportedGraph{
		Nodes: make([]ExportedNode, 0, g.NodeCount()),
		Edges: make([]ExportedEdge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, ExportedNode{
			ID:         n.ID,
			Type:       string(n.NodeType),
			Title:      n.Title,
			Centrality: n.CentralityScore,
			DocumentID: n.DocumentID,
		})
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, ExportedEdge{
			Source:       e.SourceID,
			Target:       e.TargetID,
			Relationship: string(e.RelationshipType),
			Weight:       e.Weight,
		})
	}
	return out
}

// Marshal serialises the graph in format.
func (e *ExportedGraph) Marshal(format ExportFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(e, "", "  ")
	case FormatYAML:
		return yaml.Marshal(e)
	case FormatParquet:
		rows := make([]graphRow, 0, len(e.Nodes)+len(e.Edges))
		for _, n := range e.Nodes {
			rows = append(rows, graphRow{Kind: rowKindNode, ID: n.ID, Type: n.Type, Title: n.Title, Centrality: n.Centrality, DocumentID: n.DocumentID})
		}
		for _, edge := range e.Edges {
			rows = append(rows, graphRow{Kind: rowKindEdge, Source: edge.Source, Target: edge.Target, Relationship: edge.Relationship, Weight: edge.Weight})
		}
		var buf bytes.Buffer
		if err := parquet.Write(&buf, rows); err != nil {
			return nil, fmt.Errorf("failed to write parquet: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// UnmarshalExportedGraph parses data written by Marshal.
func UnmarshalExportedGraph(data []byte, format ExportFormat) (*ExportedGraph, error) {
	var out ExportedGraph
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to decode graph json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to decode graph yaml: %w", err)
		}
	case FormatParquet:
		rows, err := parquet.Read[graphRow](bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet: %w", err)
		}
		for _, r := range rows {
			switch r.Kind {
			case rowKindNode:
				out.Nodes = append(out.Nodes, ExportedNode{ID: r.ID, Type: r.Type, Title: r.Title, Centrality: r.Centrality, DocumentID: r.DocumentID})
			case rowKindEdge:
				out.Edges = append(out.Edges, ExportedEdge{Source: r.Source, Target: r.Target, Relationship: r.Relationship, Weight: r.Weight})
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return &out, nil
}

// ToKnowledgeGraph rebuilds a graph from its exported form. Nodes with an
// unknown type and edges with missing endpoints are skipped.
func (e *ExportedGraph) ToKnowledgeGraph(logger *slog.Logger) *KnowledgeGraph {
	g := NewKnowledgeGraph(logger)
	for _, n := range e.Nodes {
		g.AddNode(&types.GraphNode{
			ID:              n.ID,
			NodeType:        types.NodeType(n.Type),
			Title:           n.Title,
			DocumentID:      n.DocumentID,
			CentralityScore: n.Centrality,
		})
	}
	for _, edge := range e.Edges {
		g.AddEdge(&types.GraphEdge{
			SourceID:         edge.Source,
			TargetID:         edge.Target,
			RelationshipType: types.RelationshipType(edge.Relationship),
			Weight:           edge.Weight,
			Confidence:       edge.Weight,
		})
	}
	return g
}
