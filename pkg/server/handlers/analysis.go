package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/crossdoc"
	"github.com/soundprediction/docgraph/pkg/server/dto"
)

// AnalysisHandler serves cross-document analysis requests
type AnalysisHandler struct {
	client       docgraph.DocGraph
	maxDocuments int
}

// NewAnalysisHandler creates a new analysis handler. maxDocuments caps the
// batch size of one request; non-positive uses dto.DefaultMaxDocuments.
func NewAnalysisHandler(client docgraph.DocGraph, maxDocuments int) *AnalysisHandler {
	return &AnalysisHandler{client: client, maxDocuments: maxDocuments}
}

// Analyze handles POST /api/v1/analyze
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req dto.DocumentsRequest
	if !bind(c, &req, h.maxDocuments) {
		return
	}
	report, err := h.client.Analyze(c.Request.Context(), req.Documents)
	if err != nil {
		writeOperationError(c, "analysis", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Relationships handles POST /api/v1/relationships
func (h *AnalysisHandler) Relationships(c *gin.Context) {
	var req dto.RelationshipsRequest
	if !bind(c, &req, h.maxDocuments) {
		return
	}
	related, err := h.client.Relationships(c.Request.Context(), req.TargetID, req.Documents, req.Kinds)
	if err != nil {
		writeOperationError(c, "relationships", err)
		return
	}
	c.JSON(http.StatusOK, dto.RelationshipsResponse{TargetID: req.TargetID, Relationships: related})
}

// Clusters handles POST /api/v1/clusters
func (h *AnalysisHandler) Clusters(c *gin.Context) {
	var req dto.ClustersRequest
	if !bind(c, &req, h.maxDocuments) {
		return
	}
	clusters, err := h.client.Clusters(c.Request.Context(), req.Documents, req.Strategy)
	if err != nil {
		writeOperationError(c, "clustering", err)
		return
	}
	summaries := make([]crossdoc.ClusterSummary, 0, len(clusters))
	for _, cl := range clusters {
		summaries = append(summaries, cl.Summary())
	}
	c.JSON(http.StatusOK, dto.ClustersResponse{Clusters: summaries})
}

// Conflicts handles POST /api/v1/conflicts
func (h *AnalysisHandler) Conflicts(c *gin.Context) {
	var req dto.DocumentsRequest
	if !bind(c, &req, h.maxDocuments) {
		return
	}
	analysis, err := h.client.Conflicts(c.Request.Context(), req.Documents)
	if err != nil {
		writeOperationError(c, "conflict_detection", err)
		return
	}
	pairs := analysis.ConflictingPairs
	if pairs == nil {
		pairs = []crossdoc.ConflictingPair{}
	}
	c.JSON(http.StatusOK, dto.ConflictsResponse{
		Summary:          analysis.GetConflictSummary(),
		ConflictingPairs: pairs,
	})
}
