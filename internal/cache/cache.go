package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/plancheck/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a namespaced cache key from the given parts. Parts are hashed so keys are
// safe to use as file names.
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "plancheck-v1-" + namespace + "-" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory only, or memory over disk when a
// directory is configured. It returns nil when caching is disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	memory := NewMemoryCache(cfg.TTL, 10*time.Minute)
	if cfg.Directory == "" {
		return memory
	}
	return NewLayeredCache(memory, NewDiskCache(cfg.Directory, cfg.TTL), cfg.TTL)
}
