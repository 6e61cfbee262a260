package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// StreamFunc receives model output as it is produced.
// Returning an error stops the stream.
type StreamFunc func(ctx context.Context, chunk string) error

// ChatModel generates text from a list of messages.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Generate runs one completion and returns the full reply.
	Generate(ctx context.Context, messages []ChatMessage, opts GenerationOptions) (string, error)

	// Stream runs one completion, passing each chunk to fn as it arrives.
	// It returns the full reply once the model is done.
	Stream(ctx context.Context, messages []ChatMessage, opts GenerationOptions, fn StreamFunc) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ChatModel returns the model that answers questions.
	ChatModel() ChatModel

	// ExpansionModel returns the auxiliary model that rewrites search queries.
	ExpansionModel() ChatModel

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
