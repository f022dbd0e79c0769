package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/plancheck/internal/cache"
	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/model"
)

// CachedStore reads through a cache and invalidates an authority on Save.
// Missing rule sets are not cached.
type CachedStore struct {
	inner RuleStore
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedStore wraps inner
func NewCachedStore(inner RuleStore, c cache.Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: c, ttl: ttl}
}

func ruleSetKey(authority string) string {
	return cache.Key("rules", authority)
}

// Load serves from the cache when possible
func (s *CachedStore) Load(ctx context.Context, authority string) ([]model.Rule, error) {
	key := ruleSetKey(authority)
	if data, ok := s.cache.Get(key); ok {
		if rules, err := model.ParseRuleSet(data); err == nil {
			return rules, nil
		}
		_ = s.cache.Delete(key)
	}

	rules, err := s.inner.Load(ctx, authority)
	if err != nil {
		return nil, err
	}

	if !cacheable(rules) {
		return rules, nil
	}
	if data, err := json.Marshal(rules); err == nil {
		if err := s.cache.Set(key, data, s.ttl); err != nil {
			logger.Debug("rule set cache write failed", "authority", authority, "error", err)
		}
	}
	return rules, nil
}

// cacheable reports whether rules survive a JSON round trip; undecodable entries do not
func cacheable(rules []model.Rule) bool {
	for _, r := range rules {
		if r.DecodeError != "" {
			return false
		}
	}
	return true
}

// Save writes through and drops the cached copy
func (s *CachedStore) Save(ctx context.Context, authority string, rules []model.Rule) error {
	if err := s.inner.Save(ctx, authority, rules); err != nil {
		return err
	}
	if err := s.cache.Delete(ruleSetKey(authority)); err != nil {
		return fmt.Errorf("invalidate cached rule set: %w", err)
	}
	return nil
}

// List is not cached
func (s *CachedStore) List(ctx context.Context) ([]RuleSetInfo, error) {
	return s.inner.List(ctx)
}

// Close closes the inner store
func (s *CachedStore) Close() error {
	return s.inner.Close()
}
