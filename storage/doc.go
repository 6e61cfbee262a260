// Package storage defines the persistence contracts used by ragline.
//
// Three repositories cover the system's state:
//
//   - FragmentIndex: embedded document fragments and similarity search
//   - DocumentCatalog: the (filename, content hash) ledger used for deduplication
//   - ConversationRepository: chat conversations and their message history
//
// Two backends implement them: storage/badger (embedded, the default) and
// storage/postgres (pgvector). Public constructors return the interfaces
// above. Package-internal constructors may return concrete types.
//
// All implementations must be safe for concurrent use, and every method
// takes a context.Context for cancellation.
package storage
