package chunk

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragline/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultChunkSize is the target fragment size in tokens.
const DefaultChunkSize = 200

// ErrInvalidChunkSize is returned for sizes below 1.
var ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

// Chunker cuts document text into token-bounded, order-preserving fragments.
// Consecutive fragments do not overlap.
type Chunker struct {
	splitter textsplitter.TextSplitter
	size     int
	logger   *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithSplitter replaces the text splitter.
func WithSplitter(splitter textsplitter.TextSplitter) Option {
	return func(c *Chunker) error {
		if splitter == nil {
			return errors.New("splitter cannot be nil")
		}
		c.splitter = splitter
		return nil
	}
}

// NewTokenChunker counts tokens with the tiktoken encoding used by OpenAI models.
// The encoding tables are fetched on first use.
func NewTokenChunker(size int, opts ...Option) (*Chunker, error) {
	if size < 1 {
		return nil, ErrInvalidChunkSize
	}
	splitter := textsplitter.NewTokenSplitter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(0),
	)
	return newChunker(splitter, size, opts...)
}

// NewWordChunker counts whitespace separated words as tokens.
// It needs no network access and is used offline and in tests.
func NewWordChunker(size int, opts ...Option) (*Chunker, error) {
	if size < 1 {
		return nil, ErrInvalidChunkSize
	}
	return newChunker(&WordSplitter{ChunkSize: size}, size, opts...)
}

func newChunker(splitter textsplitter.TextSplitter, size int, opts ...Option) (*Chunker, error) {
	c := &Chunker{
		splitter: splitter,
		size:     size,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "chunker")
	return c, nil
}

// Size returns the target fragment size in tokens.
func (c *Chunker) Size() int {
	return c.size
}

// Chunk splits text into fragments tagged with source and owner.
// Sequence numbers follow the order of the text, starting at 0.
// Whitespace-only segments are dropped.
func (c *Chunker) Chunk(sourceID, ownerID, text string) ([]core.Fragment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", sourceID, err)
	}

	fragments := make([]core.Fragment, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fragments = append(fragments, core.Fragment{
			Text:     part,
			OwnerID:  ownerID,
			SourceID: sourceID,
			Sequence: len(fragments),
		})
	}

	c.logger.Debug("chunked document", "source", sourceID, "fragments", len(fragments))
	return fragments, nil
}
