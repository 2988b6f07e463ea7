// Package types defines the core data types for the docgraph knowledge graph
// and the search-result batches it is built from.
//
// This package contains:
//   - GraphNode / GraphEdge: typed vertices and weighted relationships
//   - TraversalResult: a path found by the graph traverser
//   - SearchResult: the validated input record handed to the engine
//
// # Node Types
//
//   - DocumentNodeType: one per unique source document
//   - SectionNodeType: one per search result item
//   - EntityNodeType / TopicNodeType: terms recurring across documents
//
// # JSON Serialization
//
// All types are JSON-serializable with snake_case field names. Entity and
// topic lists accept either objects or plain strings on input.
package types
