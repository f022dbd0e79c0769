package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ppiankov/plancheck/internal/cache"
)

// CachedProvider serves repeated prompts from a cache. Rule generation runs at
// temperature 0, so identical prompts are expected to give interchangeable answers.
type CachedProvider struct {
	inner Provider
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps inner; a nil cache disables caching
func NewCachedProvider(inner Provider, c cache.Cache, ttl time.Duration) Provider {
	if c == nil {
		return inner
	}
	return &CachedProvider{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped provider's name
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *CachedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Complete returns a cached response when one exists, otherwise calls the provider and
// caches a successful answer
func (p *CachedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	key := cache.Key("llm", p.inner.Name(), req.Model, req.System, req.Prompt,
		strconv.Itoa(req.MaxTokens), strconv.FormatBool(req.JSON))

	if data, ok := p.cache.Get(key); ok {
		var resp CompletionResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
	}

	resp, err := p.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		_ = p.cache.Set(key, data, p.ttl)
	}
	return resp, nil
}
