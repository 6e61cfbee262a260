package reembed

import "errors"

var (
	// ErrScannerRequired is returned when no fragment scanner is provided.
	ErrScannerRequired = errors.New("fragment scanner required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingCount is returned when the embedder returns a different number of vectors than texts.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)
