package vectorstore

import (
	"context"
	"errors"
	"regexp"
)

var (
	// ErrNotFound is returned when no embedding is stored for a document.
	ErrNotFound = errors.New("embedding not found")
	// ErrUnsupportedBackend is returned by New for an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported vector store backend")
	// ErrInvalidIdentifier is returned for table or label names that are not plain identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrEmptyVector is returned when writing an embedding with no components.
	ErrEmptyVector = errors.New("embedding vector is empty")
)

// Embedding is a stored document vector.
type Embedding struct {
	DocumentID string    `json:"document_id"`
	Project    string    `json:"project,omitempty"`
	Vector     []float32 `json:"vector"`
}

// Filter restricts ScanEmbeddings. Zero fields do not filter.
type Filter struct {
	IDs     []string
	Project string
	Limit   int
}

// Store reads document embeddings. Implementations honour ctx cancellation
// where their client library allows it.
type Store interface {
	// GetEmbedding returns the vector for documentID or ErrNotFound.
	GetEmbedding(ctx context.Context, documentID string) ([]float32, error)
	// ScanEmbeddings returns stored embeddings matching filter, ordered by document id.
	ScanEmbeddings(ctx context.Context, filter Filter) ([]Embedding, error)
	Close() error
}

// Writer stores document embeddings.
type Writer interface {
	PutEmbedding(ctx context.Context, e Embedding) error
}

// ReadWriter is a Store that also accepts writes.
type ReadWriter interface {
	Store
	Writer
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

func (f Filter) matches(e Embedding, ids map[string]struct{}) bool {
	if len(ids) > 0 {
		if _, ok := ids[e.DocumentID]; !ok {
			return false
		}
	}
	return f.Project == "" || f.Project == e.Project
}

func (f Filter) idSet() map[string]struct{} {
	if len(f.IDs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(f.IDs))
	for _, id := range f.IDs {
		set[id] = struct{}{}
	}
	return set
}
