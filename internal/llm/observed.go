package llm

import (
	"context"
	"time"
)

// ObserveFunc receives the outcome of every completion call
type ObserveFunc func(provider string, start time.Time, err error)

// ObservedProvider reports each Complete call to an ObserveFunc
type ObservedProvider struct {
	inner   Provider
	observe ObserveFunc
}

// NewObservedProvider wraps inner; a nil observe returns inner unchanged
func NewObservedProvider(inner Provider, observe ObserveFunc) Provider {
	if observe == nil {
		return inner
	}
	return &ObservedProvider{inner: inner, observe: observe}
}

// Name returns the wrapped provider's name
func (p *ObservedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *ObservedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete delegates and reports the call
func (p *ObservedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := p.inner.Complete(ctx, req)
	p.observe(p.inner.Name(), start, err)
	return resp, err
}
