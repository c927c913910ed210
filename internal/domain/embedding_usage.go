package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects provider token usage for a single request.
// The handler puts a mutable pointer into the context before calling the service;
// services add to it; the handler logs it on the request's wide event.
type RequestUsage struct {
	EmbeddingTokens  int
	PromptTokens     int // language model input
	CompletionTokens int // language model output
	Used             bool // true if a provider was called, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records consumed embedding tokens.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Used = true
	}
}

// AddModelTokens records language model prompt and completion tokens.
func (u *RequestUsage) AddModelTokens(prompt, completion int) {
	if u != nil {
		u.PromptTokens += prompt
		u.CompletionTokens += completion
		u.Used = true
	}
}
