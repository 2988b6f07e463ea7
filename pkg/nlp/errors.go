package nlp

import "errors"

var (
	// ErrEmptyQuery is returned when a query has no analyzable content.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrModelNotLoaded is returned when a model-backed component is used after Close.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrNotValue is returned by ParseValue for entities that carry no comparable value.
	ErrNotValue = errors.New("entity has no comparable value")
)
