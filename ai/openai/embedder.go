package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragline/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// embedBatchSize caps the texts sent in one embeddings request.
const embedBatchSize = 64

// Embedder implements ai.Embedder on an OpenAI-compatible embeddings endpoint.
// EmbedText embeds a search query; EmbedTexts embeds document fragments.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Local servers ignore the token but the client requires one.
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(embedBatchSize))
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	return &Embedder{
		embedder: embedder,
		model:    config.EmbeddingModel,
		logger:   slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates an embedder for config.EmbeddingModel on config.EmbeddingHost.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a single query.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, scrubString(text))
	if err != nil {
		e.logger.Error("failed to embed query", "length", len(text), "err", err)
		return nil, fmt.Errorf("embed query with %s: %w", e.model, err)
	}
	return vec, nil
}

// EmbedTexts embeds texts in order. An empty input makes no request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	cleaned := make([]string, len(texts))
	for i, text := range texts {
		cleaned[i] = scrubString(text)
	}

	e.logger.Debug("embedding texts", "count", len(cleaned))
	vectors, err := e.embedder.EmbedDocuments(ctx, cleaned)
	if err != nil {
		e.logger.Error("failed to embed texts", "count", len(cleaned), "err", err)
		return nil, fmt.Errorf("embed %d texts with %s: %w", len(cleaned), e.model, err)
	}
	if len(vectors) != len(cleaned) {
		return nil, fmt.Errorf("embed %d texts with %s: got %d vectors", len(cleaned), e.model, len(vectors))
	}
	return vectors, nil
}
