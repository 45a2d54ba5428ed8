package services

import "sync"

// AnalysisCache maps a request fingerprint to a previously computed
// OutfitAnalysis. It is a best-effort, session-scoped accelerator: no TTL, no
// eviction, dropped with the owning orchestrator. Correctness never depends on
// it, so a plain map is enough here; the admission-policy caches (ristretto)
// stay on the presigned URL side where a dropped entry only costs a re-presign.
type AnalysisCache struct {
	mu      sync.Mutex
	entries map[string]*OutfitAnalysis
}

func NewAnalysisCache() *AnalysisCache {
	return &AnalysisCache{entries: map[string]*OutfitAnalysis{}}
}

// Get reports the hit distinctly: the orchestrator uses it to skip the
// provider pipeline and to leave the cooldown unarmed on cache hits.
func (c *AnalysisCache) Get(fingerprint string) (*OutfitAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	analysis, ok := c.entries[fingerprint]
	return analysis, ok
}

func (c *AnalysisCache) Put(fingerprint string, analysis *OutfitAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = analysis
}

func (c *AnalysisCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
