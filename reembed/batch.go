package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/retry"
	"github.com/poiesic/ragline/storage"
)

// BatchProcessor embeds a page of fragments and stores the new vectors.
type BatchProcessor struct {
	scanner  storage.FragmentScanner
	embedder ai.Embedder
	policy   retry.Policy
}

// NewBatchProcessor creates a batch processor. Embedding calls are retried under policy.
func NewBatchProcessor(scanner storage.FragmentScanner, embedder ai.Embedder, policy retry.Policy) *BatchProcessor {
	return &BatchProcessor{
		scanner:  scanner,
		embedder: embedder,
		policy:   policy,
	}
}

// Process re-embeds fragments and writes their vectors back.
func (bp *BatchProcessor) Process(ctx context.Context, fragments []core.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	texts := make([]string, len(fragments))
	for i := range fragments {
		texts[i] = fragments[i].Text
	}

	var vectors [][]float32
	err := retry.Do(ctx, bp.policy, func(ctx context.Context) error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("embed %d fragments after %d attempts: %w", len(fragments), bp.policy.MaxAttempts, err)
	}
	if len(vectors) != len(fragments) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(fragments), len(vectors))
	}

	updated := make([]core.Fragment, len(fragments))
	for i := range fragments {
		updated[i] = fragments[i]
		updated[i].Vector = vectors[i]
	}
	if err := bp.scanner.UpdateVectors(ctx, updated); err != nil {
		return fmt.Errorf("update vectors: %w", err)
	}
	return nil
}
