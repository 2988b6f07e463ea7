package dto

import (
	"strings"

	"github.com/soundprediction/docgraph/pkg/crossdoc"
	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/types"
)

// DocumentsRequest carries a batch of search results.
type DocumentsRequest struct {
	Documents []types.SearchResult `json:"documents" binding:"required"`
}

// Validate performs validation on DocumentsRequest
func (r *DocumentsRequest) Validate(maxDocuments int) error {
	return validateDocuments(r.Documents, maxDocuments)
}

// RelationshipsRequest asks for the documents related to one target.
type RelationshipsRequest struct {
	TargetID  string               `json:"target_id" binding:"required"`
	Documents []types.SearchResult `json:"documents" binding:"required"`
	// Kinds defaults to every relationship kind.
	Kinds []string `json:"kinds,omitempty"`
}

// Validate performs validation on RelationshipsRequest
func (r *RelationshipsRequest) Validate(maxDocuments int) error {
	if strings.TrimSpace(r.TargetID) == "" {
		return ErrEmptyTargetID
	}
	if len(r.Kinds) > MaxKinds {
		return ErrTooManyKinds
	}
	return validateDocuments(r.Documents, maxDocuments)
}

// RelationshipsResponse lists related document ids per kind.
type RelationshipsResponse struct {
	TargetID      string                                `json:"target_id"`
	Relationships map[crossdoc.RelationshipKind][]string `json:"relationships"`
}

// ClustersRequest asks for the batch to be clustered.
type ClustersRequest struct {
	Documents []types.SearchResult `json:"documents" binding:"required"`
	// Strategy defaults to the configured clustering strategy.
	Strategy string `json:"strategy,omitempty"`
}

// Validate performs validation on ClustersRequest
func (r *ClustersRequest) Validate(maxDocuments int) error {
	return validateDocuments(r.Documents, maxDocuments)
}

// ClustersResponse lists the clusters found.
type ClustersResponse struct {
	Clusters []crossdoc.ClusterSummary `json:"clusters"`
}

// ConflictsResponse is the conflict analysis of a batch.
type ConflictsResponse struct {
	Summary          crossdoc.ConflictSummary   `json:"summary"`
	ConflictingPairs []crossdoc.ConflictingPair `json:"conflicting_pairs"`
}

// RelatedRequest asks for related content reachable from a query.
type RelatedRequest struct {
	Documents         []types.SearchResult `json:"documents" binding:"required"`
	Query             string               `json:"query" binding:"required"`
	Strategy          string               `json:"strategy,omitempty"`
	MaxHops           *int                 `json:"max_hops,omitempty"`
	MaxResults        int                  `json:"max_results,omitempty"`
	MinWeight         *float64             `json:"min_weight,omitempty"`
	WeightCombination string               `json:"weight_combination,omitempty"`
}

// Validate performs validation on RelatedRequest
func (r *RelatedRequest) Validate(maxDocuments int) error {
	if err := validateQuery(r.Query); err != nil {
		return err
	}
	if (r.MaxHops != nil && *r.MaxHops < 0) || r.MaxResults < 0 || (r.MinWeight != nil && *r.MinWeight < 0) {
		return ErrNegativeTraversal
	}
	return validateDocuments(r.Documents, maxDocuments)
}

// TraversalOptions converts the request into traversal options. Omitted
// max_hops and min_weight take the server defaults; an explicit 0 is kept.
// Strategy and combination names are validated by the traverser.
func (r *RelatedRequest) TraversalOptions() graph.TraversalOptions {
	opts := graph.RelatedOptions(graph.Strategy(strings.ToLower(strings.TrimSpace(r.Strategy))))
	opts.MaxResults = r.MaxResults
	opts.Combination = graph.WeightCombination(strings.ToLower(strings.TrimSpace(r.WeightCombination)))
	if r.MaxHops != nil {
		opts.MaxHops = *r.MaxHops
	}
	if r.MinWeight != nil {
		opts.MinWeight = *r.MinWeight
	}
	return opts
}

// RelatedResponse lists traversal results.
type RelatedResponse struct {
	Query   string                   `json:"query"`
	Results []*types.TraversalResult `json:"results"`
}

// ExportRequest asks for the batch's knowledge graph in a format.
type ExportRequest struct {
	Documents []types.SearchResult `json:"documents" binding:"required"`
	// Format is json, yaml or parquet; json when empty.
	Format string `json:"format,omitempty"`
}

// Validate performs validation on ExportRequest
func (r *ExportRequest) Validate(maxDocuments int) error {
	return validateDocuments(r.Documents, maxDocuments)
}

// ExportFormat returns the requested format, defaulting to json.
func (r *ExportRequest) ExportFormat() string {
	if f := strings.TrimSpace(r.Format); f != "" {
		return f
	}
	return string(graph.FormatJSON)
}
