package core

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated from database sequences.
type ID uint64

// UnknownFilename is used when an upload carries no usable filename.
const UnknownFilename = "unknown"

// DefaultDocumentType is reported for files without a usable extension.
const DefaultDocumentType = "txt"

// HashContent returns the hex encoded 256-bit BLAKE2b digest of data.
// Identical bytes always produce identical hashes.
func HashContent(data []byte) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentTypeOf derives a document type from a filename's extension.
// The extension is lowercased; names without one (or ending in a dot) are "txt".
func DocumentTypeOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx == -1 || idx == len(filename)-1 {
		return DefaultDocumentType
	}
	ext := filename[idx+1:]
	// "dir.v2/readme" has no extension
	if strings.ContainsAny(ext, `/\`) {
		return DefaultDocumentType
	}
	return strings.ToLower(ext)
}

// NormalizeFilename trims the name and falls back to UnknownFilename when blank.
func NormalizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownFilename
	}
	return filepath.Base(name)
}

// Fragment is a token-bounded slice of a source document.
// Fragments are immutable once created; Vector is filled in by the index that stores them.
type Fragment struct {
	Id       ID
	Text     string
	OwnerID  string    // Owning user, empty for shared knowledge
	SourceID string    // Filename the fragment was cut from
	Sequence int       // Position within the source, starting at 0
	Vector   []float32 // Embedding vector (populated by the index)
}

// Metadata returns the fragment's index metadata.
func (f *Fragment) Metadata() map[string]string {
	return map[string]string{
		"source":  f.SourceID,
		"ownerId": f.OwnerID,
	}
}

// ScoredFragment is a similarity search hit.
type ScoredFragment struct {
	Fragment *Fragment
	Score    float32
}

// Document is the catalog record of a successfully ingested file.
// The (Filename, ContentHash) pair is unique.
type Document struct {
	Id           ID
	Filename     string
	ContentHash  string
	ChunkCount   int
	DocumentType string
	OwnerID      string
	CreatedAt    time.Time
}

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry of a conversation.
type Message struct {
	Id        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Conversation is an append-only message log with a title.
type Conversation struct {
	Id        string
	Title     string
	CreatedAt time.Time
	Messages  []*Message
}

// ProgressStatus is the status carried by an UploadProgress event.
type ProgressStatus string

const (
	StatusProcessing ProgressStatus = "processing"
	StatusSkipped    ProgressStatus = "skipped"
	StatusCompleted  ProgressStatus = "completed"
	StatusError      ProgressStatus = "error"
)

// UploadProgress is one event of a streamed upload.
type UploadProgress struct {
	Percent        int            `json:"percent"`
	ProcessedFiles int            `json:"processedFiles"`
	TotalFiles     int            `json:"totalFiles"`
	CurrentFile    string         `json:"currentFile"`
	Status         ProgressStatus `json:"status"`
}

// NewUploadProgress builds an event, computing percent as round(processed/total*100).
func NewUploadProgress(processed, total int, file string, status ProgressStatus) UploadProgress {
	percent := 0
	if total > 0 {
		percent = (processed*200 + total) / (total * 2)
	}
	return UploadProgress{
		Percent:        percent,
		ProcessedFiles: processed,
		TotalFiles:     total,
		CurrentFile:    file,
		Status:         status,
	}
}

// CompletedProgress is the terminal event of a finished upload.
func CompletedProgress(processed, total int) UploadProgress {
	return UploadProgress{
		Percent:        100,
		ProcessedFiles: processed,
		TotalFiles:     total,
		CurrentFile:    "",
		Status:         StatusCompleted,
	}
}

// IsTerminal reports whether no event may follow this one.
func (p UploadProgress) IsTerminal() bool {
	return p.Status == StatusCompleted
}
