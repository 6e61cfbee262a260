package ingestion

import (
	"strings"

	"github.com/poiesic/ragline/core"
)

// Upload is one submitted file.
type Upload struct {
	Filename string
	Content  []byte

	// ReadErr is set when the upload body could not be read.
	ReadErr error
}

// IsEmpty reports a readable upload with no bytes.
func (u Upload) IsEmpty() bool {
	return u.ReadErr == nil && len(u.Content) == 0
}

// Name is the filename used for cataloging, "unknown" when blank.
func (u Upload) Name() string {
	return core.NormalizeFilename(u.Filename)
}

// Outcome is the result of ingesting one file.
type Outcome int

const (
	// Ingested means the file was chunked, indexed, and cataloged.
	Ingested Outcome = iota
	// Skipped means the same filename and content were already cataloged.
	Skipped
	// Empty means the upload had no bytes and was ignored.
	Empty
)

func (o Outcome) String() string {
	switch o {
	case Ingested:
		return "ingested"
	case Skipped:
		return "skipped"
	case Empty:
		return "empty"
	}
	return "unknown"
}

// Summary is the result of a synchronous batch.
type Summary struct {
	Processed []string `json:"processed"`
	Skipped   []string `json:"skipped"`
	Message   string   `json:"message"`
}

const noNewDocumentsMessage = "No new documents uploaded"

func (s *Summary) finish() *Summary {
	if len(s.Processed) == 0 {
		s.Message = noNewDocumentsMessage
	} else {
		s.Message = "Documents uploaded: " + strings.Join(s.Processed, ", ")
	}
	return s
}
