package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragline/ai"
)

// QueryExpander asks an auxiliary model to enrich the search query with related terms.
type QueryExpander struct {
	model           ai.ChatModel
	options         ai.GenerationOptions
	fallbackOnError bool
	order           int
	logger          *slog.Logger
}

var _ Advisor = (*QueryExpander)(nil)

// ExpanderOption configures a QueryExpander.
type ExpanderOption func(*QueryExpander) error

// WithExpansionOptions sets the sampling options of the expansion call.
// Default is ai.DefaultExpansionOptions().
func WithExpansionOptions(opts ai.GenerationOptions) ExpanderOption {
	return func(e *QueryExpander) error {
		if err := opts.Validate(); err != nil {
			return err
		}
		e.options = opts
		return nil
	}
}

// WithFallbackOnError makes a failed expansion call fall back to the original query
// instead of failing the turn. The failure is logged.
func WithFallbackOnError(fallback bool) ExpanderOption {
	return func(e *QueryExpander) error {
		e.fallbackOnError = fallback
		return nil
	}
}

// WithExpanderLogger sets a custom logger.
func WithExpanderLogger(logger *slog.Logger) ExpanderOption {
	return func(e *QueryExpander) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewQueryExpander creates an expander that calls model.
func NewQueryExpander(model ai.ChatModel, opts ...ExpanderOption) (*QueryExpander, error) {
	if model == nil {
		return nil, errors.New("expansion model cannot be nil")
	}
	e := &QueryExpander{
		model:   model,
		options: ai.DefaultExpansionOptions(),
		order:   OrderExpansion,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "query-expander")
	return e, nil
}

func (e *QueryExpander) Name() string { return "query-expansion" }

func (e *QueryExpander) Order() int { return e.order }

// Before stores the original query, its expansion, and the expansion ratio in the request context.
func (e *QueryExpander) Before(ctx context.Context, req *Request) error {
	original := req.UserText
	if strings.TrimSpace(original) == "" {
		return fmt.Errorf("%w: %w", ErrExpansion, ErrEmptyQuery)
	}
	Set(req.Context, OriginalQueryKey, original)

	expanded, err := e.Expand(ctx, original)
	if err != nil {
		if !e.fallbackOnError || ctx.Err() != nil {
			return err
		}
		e.logger.Warn("query expansion failed, using original query", "err", err)
		expanded = original
	}

	Set(req.Context, ExpandedQueryKey, expanded)
	Set(req.Context, ExpansionRatioKey, ExpansionRatio(original, expanded))
	return nil
}

// Expand runs the expansion model once. An empty reply yields the original query.
func (e *QueryExpander) Expand(ctx context.Context, query string) (string, error) {
	reply, err := e.model.Generate(ctx, []ai.ChatMessage{ai.UserMessage(ExpansionPrompt(query))}, e.options)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExpansion, err)
	}
	expanded := strings.TrimSpace(reply)
	if expanded == "" {
		return query, nil
	}
	e.logger.Debug("expanded query", "original", query, "expanded", expanded)
	return expanded, nil
}

func (e *QueryExpander) After(ctx context.Context, resp *Response) error { return nil }

// ExpansionRatio is len(expanded)/len(original) in bytes. An empty original gives 0.
func ExpansionRatio(original, expanded string) float64 {
	if len(original) == 0 {
		return 0
	}
	return float64(len(expanded)) / float64(len(original))
}
