package advisor

import "github.com/poiesic/ragline/core"

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results during retrieval.
type RetrievalMonitor interface {
	Start(query string, fetch int)
	AfterSearch(candidates []core.ScoredFragment)
	AfterRerank(kept []core.ScoredFragment)
	Finish(context string)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (noopMonitor) Start(_ string, _ int)                {}
func (noopMonitor) AfterSearch(_ []core.ScoredFragment) {}
func (noopMonitor) AfterRerank(_ []core.ScoredFragment) {}
func (noopMonitor) Finish(_ string)                     {}
