package advisor

import (
	"context"
	"log/slog"
)

// LoggingAdvisor records the request context before the model call and the
// reply after it. It never changes either.
type LoggingAdvisor struct {
	name   string
	order  int
	logger *slog.Logger
}

var _ Advisor = (*LoggingAdvisor)(nil)

// NewLoggingAdvisor creates a logging advisor at order. A nil logger uses slog.Default().
func NewLoggingAdvisor(name string, order int, logger *slog.Logger) *LoggingAdvisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingAdvisor{
		name:   name,
		order:  order,
		logger: logger.With("component", "advisor", "advisor", name),
	}
}

func (l *LoggingAdvisor) Name() string { return l.name }

func (l *LoggingAdvisor) Order() int { return l.order }

func (l *LoggingAdvisor) Before(ctx context.Context, req *Request) error {
	l.logger.DebugContext(ctx, "request",
		"conversation_id", req.Context.ConversationID(),
		"original_query", req.Context.OriginalQuery(),
		"expanded_query", req.Context.ExpandedQuery(),
		"expansion_ratio", req.Context.ExpansionRatio(),
		"context_chars", len(req.Context.RetrievedContext()),
		"messages", len(req.Messages))
	return nil
}

func (l *LoggingAdvisor) After(ctx context.Context, resp *Response) error {
	l.logger.DebugContext(ctx, "response",
		"conversation_id", resp.Context.ConversationID(),
		"chars", len(resp.Text))
	return nil
}
