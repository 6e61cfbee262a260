package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/rerank"
	"github.com/poiesic/ragline/storage"
)

// RetrievalSettings control how many fragments are fetched and kept.
type RetrievalSettings struct {
	// SearchTopK is the number of fragments handed to the model.
	SearchTopK int

	// FetchMultiplier oversamples the vector search so the reranker has candidates to drop.
	FetchMultiplier int

	// SimilarityThreshold is the minimum vector similarity accepted.
	SimilarityThreshold float32
}

// DefaultRetrievalSettings returns 2 kept fragments from 4 candidates above 0.3 similarity.
func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		SearchTopK:          2,
		FetchMultiplier:     2,
		SimilarityThreshold: 0.3,
	}
}

// Validate checks value ranges.
func (s RetrievalSettings) Validate() error {
	if s.SearchTopK < 1 {
		return errors.New("search top k must be greater than 0")
	}
	if s.FetchMultiplier < 1 {
		return errors.New("fetch multiplier must be greater than 0")
	}
	if s.SimilarityThreshold < -1 || s.SimilarityThreshold > 1 {
		return errors.New("similarity threshold must be between -1 and 1")
	}
	return nil
}

// Retriever fetches candidate fragments, reranks them with BM25, and rewrites
// the user message to embed the surviving context and the original question.
type Retriever struct {
	index    storage.FragmentIndex
	scorer   rerank.BM25
	settings RetrievalSettings
	monitor  RetrievalMonitor
	logger   *slog.Logger
}

var _ Advisor = (*Retriever)(nil)

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever) error

// WithRetrievalSettings overrides DefaultRetrievalSettings.
func WithRetrievalSettings(settings RetrievalSettings) RetrieverOption {
	return func(r *Retriever) error {
		if err := settings.Validate(); err != nil {
			return err
		}
		r.settings = settings
		return nil
	}
}

// WithScorer replaces the BM25 parameters.
func WithScorer(scorer rerank.BM25) RetrieverOption {
	return func(r *Retriever) error {
		r.scorer = scorer
		return nil
	}
}

// WithMonitor attaches a monitor that observes every retrieval.
func WithMonitor(monitor RetrievalMonitor) RetrieverOption {
	return func(r *Retriever) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		r.monitor = monitor
		return nil
	}
}

// WithRetrieverLogger sets a custom logger.
func WithRetrieverLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a retriever over index.
func NewRetriever(index storage.FragmentIndex, opts ...RetrieverOption) (*Retriever, error) {
	if index == nil {
		return nil, errors.New("fragment index cannot be nil")
	}
	r := &Retriever{
		index:    index,
		scorer:   rerank.NewBM25(),
		settings: DefaultRetrievalSettings(),
		monitor:  noopMonitor{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")
	return r, nil
}

func (r *Retriever) Name() string { return "retrieval" }

func (r *Retriever) Order() int { return OrderRetrieval }

// Before retrieves context for the search query and rewrites the user message.
// The model sees the original question, never the expansion.
func (r *Retriever) Before(ctx context.Context, req *Request) error {
	if req.Context.OriginalQuery() == "" {
		Set(req.Context, OriginalQueryKey, req.UserText)
	}
	query := req.Context.SearchQuery()

	text, err := r.Retrieve(ctx, query)
	if err != nil {
		return err
	}

	Set(req.Context, RetrievedContextKey, text)
	replaceUserMessage(req, ContextPrompt(text, req.UserText))
	return nil
}

// Retrieve returns the newline-joined context for query, or EmptyContext when
// the index has nothing above the threshold.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	fetch := r.settings.SearchTopK * r.settings.FetchMultiplier
	r.monitor.Start(query, fetch)

	candidates, err := r.index.Search(ctx, query, fetch, r.settings.SimilarityThreshold)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	r.monitor.AfterSearch(candidates)

	if len(candidates) == 0 {
		r.logger.Debug("no fragments above threshold", "threshold", r.settings.SimilarityThreshold)
		r.monitor.Finish(EmptyContext)
		return EmptyContext, nil
	}

	kept := r.scorer.Rerank(query, candidates, r.settings.SearchTopK)
	r.monitor.AfterRerank(kept)

	text := joinFragments(kept)
	r.logger.Debug("retrieved context", "candidates", len(candidates), "kept", len(kept), "chars", len(text))
	r.monitor.Finish(text)
	return text, nil
}

func (r *Retriever) After(ctx context.Context, resp *Response) error { return nil }

func joinFragments(fragments []core.ScoredFragment) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Fragment.Text
	}
	return strings.Join(texts, "\n")
}
