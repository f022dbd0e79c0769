// Package store persists rule sets keyed by authority slug.
// The check engine never reads a store; callers load a rule set and pass the value in.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/plancheck/internal/cache"
	"github.com/ppiankov/plancheck/internal/model"
)

var (
	// ErrNotFound is returned when no rule set exists for an authority
	ErrNotFound = errors.New("rules not found")

	// ErrInvalidAuthority is returned for keys that cannot name a rule set
	ErrInvalidAuthority = errors.New("invalid authority")
)

// RuleSetInfo describes a stored rule set
type RuleSetInfo struct {
	Authority string    `json:"authority"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RuleStore loads and saves whole rule sets
type RuleStore interface {
	Load(ctx context.Context, authority string) ([]model.Rule, error)
	Save(ctx context.Context, authority string, rules []model.Rule) error
	List(ctx context.Context) ([]RuleSetInfo, error)
	Close() error
}

// Open builds the store named by cfg.Backend, wrapped in a read-through cache when c is not nil
func Open(ctx context.Context, cfg model.StoreConfig, c cache.Cache, ttl time.Duration) (RuleStore, error) {
	var inner RuleStore
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		inner = NewFileStore(cfg.RulesDir)
	case "postgres", "postgresql":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres store requires store.database_url")
		}
		pg, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		inner = pg
	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: file, postgres)", cfg.Backend)
	}

	if c == nil {
		return inner, nil
	}
	return NewCachedStore(inner, c, ttl), nil
}

// checkAuthority rejects empty keys and keys that could escape a directory
func checkAuthority(authority string) error {
	if authority == "" || authority == "." || authority == ".." ||
		strings.ContainsAny(authority, `/\`) || strings.ContainsRune(authority, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidAuthority, authority)
	}
	return nil
}
