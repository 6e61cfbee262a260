package storage

import (
	"context"

	"github.com/poiesic/ragline/core"
)

// FragmentIndex stores embedded fragments and answers similarity queries.
// Implementations must be thread-safe and support concurrent access.
type FragmentIndex interface {
	// Search embeds query and returns up to topK fragments whose cosine similarity
	// is at least threshold, ordered by score (highest first).
	Search(ctx context.Context, query string, topK int, threshold float32) ([]core.ScoredFragment, error)

	// Upsert embeds and stores fragments. Fragments with Id=0 get a new ID.
	Upsert(ctx context.Context, fragments []core.Fragment) error

	// DeleteByOwner removes every fragment tagged with owner.
	DeleteByOwner(ctx context.Context, owner string) error

	// DeleteBySources removes every fragment whose source is in sources.
	DeleteBySources(ctx context.Context, sources ...string) error

	// Close releases resources held by the index.
	Close() error
}

// DocumentCatalog tracks which files have been ingested, keyed by (filename, content hash).
type DocumentCatalog interface {
	// Exists reports whether a document with the same filename and hash is recorded.
	Exists(ctx context.Context, filename, contentHash string) (bool, error)

	// Insert records a document, assigning its ID and creation time.
	// Returns ErrDuplicateKey if (filename, content hash) is already recorded.
	Insert(ctx context.Context, doc *core.Document) (*core.Document, error)

	// FindByOwner lists documents uploaded by owner, oldest first.
	FindByOwner(ctx context.Context, owner string) ([]*core.Document, error)

	// DeleteMany removes the given documents. Missing documents are ignored.
	DeleteMany(ctx context.Context, docs ...*core.Document) error

	// Close releases resources held by the catalog.
	Close() error
}

// ConversationRepository persists conversations and their message history.
type ConversationRepository interface {
	// CreateConversation stores a new conversation with a generated ID.
	CreateConversation(ctx context.Context, title string) (*core.Conversation, error)

	// GetConversation returns a conversation with all of its messages in order.
	// Returns ErrNotFound if the conversation doesn't exist.
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)

	// ListConversations returns conversation headers, newest first.
	ListConversations(ctx context.Context) ([]*core.Conversation, error)

	// DeleteConversation removes a conversation and its messages.
	// Returns ErrNotFound if the conversation doesn't exist.
	DeleteConversation(ctx context.Context, id string) error

	// AppendMessages adds messages to the end of a conversation's history.
	// Returns ErrNotFound if the conversation doesn't exist.
	AppendMessages(ctx context.Context, id string, messages ...*core.Message) error

	// CountMessages returns the number of stored messages.
	CountMessages(ctx context.Context, id string) (int, error)

	// GetMessages returns up to limit messages after skipping the first skip, in order.
	// A limit <= 0 means no limit.
	GetMessages(ctx context.Context, id string, skip, limit int) ([]*core.Message, error)

	// Close releases resources held by the repository.
	Close() error
}

// FragmentScanner is implemented by indexes that support re-embedding in place.
type FragmentScanner interface {
	// CountFragments returns the number of stored fragments.
	CountFragments(ctx context.Context) (int, error)

	// ScanFragments returns up to limit fragments with an ID greater than after, in ID order.
	ScanFragments(ctx context.Context, after core.ID, limit int) ([]core.Fragment, error)

	// UpdateVectors replaces the vectors of existing fragments.
	UpdateVectors(ctx context.Context, fragments []core.Fragment) error
}
