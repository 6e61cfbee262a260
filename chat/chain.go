package chat

import (
	"log/slog"

	"github.com/poiesic/ragline/advisor"
	"github.com/poiesic/ragline/memory"
)

// NewChain assembles the standard advisor chain: memory, expansion, a logger,
// retrieval, and a second logger, in that order.
func NewChain(
	mem *memory.Memory,
	windowSize int,
	expander *advisor.QueryExpander,
	retriever *advisor.Retriever,
	logger *slog.Logger,
) *advisor.Chain {
	return advisor.NewChain(
		memory.NewAdvisor(mem, windowSize),
		expander,
		advisor.NewLoggingAdvisor("before-search", advisor.OrderLogBeforeSearch, logger),
		retriever,
		advisor.NewLoggingAdvisor("after-search", advisor.OrderLogAfterSearch, logger),
	)
}
