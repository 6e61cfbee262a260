package ingestion

import "errors"

var (
	// ErrIndexWrite is returned when a file's fragments could not be written after all retries.
	ErrIndexWrite = errors.New("index write failed")

	// ErrFileRead is returned when an upload's bytes could not be read.
	ErrFileRead = errors.New("file read failed")

	// ErrExtraction is returned when text could not be extracted from a document.
	ErrExtraction = errors.New("text extraction failed")

	// ErrIndexRequired is returned when a fragment index is not provided.
	ErrIndexRequired = errors.New("fragment index required")

	// ErrCatalogRequired is returned when a document catalog is not provided.
	ErrCatalogRequired = errors.New("document catalog required")

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")
)
