package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage collects query embedding usage for one search. The caller
// puts it in the context, the search service records into it.
type EmbeddingUsage struct {
	TotalTokens int
	Used        bool // set even on a cache hit with 0 tokens
	Fallback    bool // inferred hybrid degraded to a listing
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}

// MarkFallback records that the search ran without a query vector.
func (u *EmbeddingUsage) MarkFallback() {
	if u != nil {
		u.Fallback = true
	}
}
