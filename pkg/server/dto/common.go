package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soundprediction/docgraph/pkg/types"
)

// Validation errors
var (
	ErrEmptyDocuments    = errors.New("documents cannot be empty")
	ErrTooManyDocuments  = errors.New("documents count exceeds maximum")
	ErrEmptyTargetID     = errors.New("target_id cannot be empty")
	ErrEmptyQuery        = errors.New("query cannot be empty")
	ErrContentTooLong    = errors.New("text exceeds maximum length (1MB)")
	ErrQueryTooLong      = errors.New("query exceeds maximum length (4096)")
	ErrTooManyKinds      = errors.New("too many relationship kinds")
	ErrNegativeTraversal = errors.New("max_hops, max_results and min_weight cannot be negative")
)

// MaxFieldLengths defines maximum lengths for fields to prevent abuse
const (
	MaxContentLength    = 1024 * 1024 // 1MB
	MaxQueryLength      = 4096
	MaxKinds            = 16
	DefaultMaxDocuments = 500
)

// Result represents a generic API result
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// validateDocuments checks the batch size and text lengths. maxDocuments <= 0
// uses DefaultMaxDocuments.
func validateDocuments(docs []types.SearchResult, maxDocuments int) error {
	if maxDocuments <= 0 {
		maxDocuments = DefaultMaxDocuments
	}
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}
	if len(docs) > maxDocuments {
		return fmt.Errorf("%w (%d)", ErrTooManyDocuments, maxDocuments)
	}
	for i := range docs {
		if len(docs[i].Text) > MaxContentLength {
			return fmt.Errorf("document %d: %w", i, ErrContentTooLong)
		}
	}
	return nil
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	if len(query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}
