package retrieval

import "github.com/normenwerk/normstore/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps during search.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterVectorSearch(candidates []*core.ScoredUnit)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)         {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.ScoredUnit)  {}
func (n *noopMonitor) Finish(_ []*Result)                      {}
