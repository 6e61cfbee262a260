package advisor

import "errors"

var (
	// ErrExpansion wraps failures of the query expansion model call.
	ErrExpansion = errors.New("query expansion failed")

	// ErrRetrieval wraps failures of the similarity search.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrEmptyQuery is returned when a turn has no question text.
	ErrEmptyQuery = errors.New("query is empty")
)
