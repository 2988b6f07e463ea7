package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/crossdoc"
	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/server/dto"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// badRequestErrors are caller mistakes rather than server failures.
var badRequestErrors = []error{
	crossdoc.ErrUnknownStrategy,
	crossdoc.ErrUnknownRelationshipKind,
	graph.ErrUnknownStrategy,
	graph.ErrUnknownCombination,
	graph.ErrUnsupportedFormat,
	graph.ErrQueryRequired,
	docgraph.ErrUnusableBatch,
}

// writeError writes an ErrorResponse with the request id attached.
func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, dto.ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Code:      status,
		RequestID: c.GetString(RequestIDKey),
	})
}

// writeOperationError maps err to 400 for caller mistakes and 500 otherwise.
func writeOperationError(c *gin.Context, op string, err error) {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			writeError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	writeError(c, http.StatusInternalServerError, op+"_failed", err)
}

// bind decodes the JSON body into req and runs its validation.
func bind(c *gin.Context, req interface{ Validate(int) error }, maxDocuments int) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	if err := req.Validate(maxDocuments); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}
