package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/server/dto"
	"github.com/soundprediction/docgraph/pkg/types"
)

var exportContentTypes = map[graph.ExportFormat]string{
	graph.FormatJSON:    "application/json",
	graph.FormatYAML:    "application/yaml",
	graph.FormatParquet: "application/vnd.apache.parquet",
}

// GraphHandler serves knowledge graph requests
type GraphHandler struct {
	client       docgraph.DocGraph
	maxDocuments int
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(client docgraph.DocGraph, maxDocuments int) *GraphHandler {
	return &GraphHandler{client: client, maxDocuments: maxDocuments}
}

// Related handles POST /api/v1/graph/related
func (h *GraphHandler) Related(c *gin.Context) {
	var req dto.RelatedRequest
	if !bind(c, &req, h.maxDocuments) {
		return
	}
	results, err := h.client.Related(c.Request.Context(), req.Documents, req.Query, req.TraversalOptions())
	if err != nil {
		writeOperationError(c, "traversal", err)
		return
	}
	if results == nil {
		results = []*types.TraversalResult{}
	}
	c.JSON(http.StatusOK, dto.RelatedResponse{Query: req.Query, Results: results})
}

// Export handles POST /api/v1/graph/export
func (h *GraphHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if !bind(c, &req, h.maxDocuments) {
		return
	}
	format, err := graph.ParseExportFormat(req.ExportFormat())
	if err != nil {
		writeOperationError(c, "export", err)
		return
	}
	data, err := h.client.ExportGraph(c.Request.Context(), req.Documents, string(format))
	if err != nil {
		writeOperationError(c, "export", err)
		return
	}
	c.Data(http.StatusOK, exportContentTypes[format], data)
}

// Stats handles POST /api/v1/graph/stats
func (h *GraphHandler) Stats(c *gin.Context) {
	var req dto.DocumentsRequest
	if !bind(c, &req, h.maxDocuments) {
		return
	}
	stats, err := h.client.GraphStatistics(c.Request.Context(), req.Documents)
	if err != nil {
		writeOperationError(c, "statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
