package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates provider tokens spent on one detect request.
// Not safe for concurrent use: one request embeds one image at a time.
type EmbeddingUsage struct {
	TotalTokens int
	Calls       int // embeddings served, cache hits included
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

// AddTokens records one embedding that consumed n tokens. Nil-safe.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Calls++
	}
}
