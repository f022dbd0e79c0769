package cache

import (
	"errors"
	"time"
)

// LayeredCache reads through a fast layer to a slower persistent one
type LayeredCache struct {
	memory     Cache
	disk       Cache
	promoteTTL time.Duration
}

// NewLayeredCache combines two caches; disk hits are copied into memory for promoteTTL
func NewLayeredCache(memory, disk Cache, promoteTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:     memory,
		disk:       disk,
		promoteTTL: promoteTTL,
	}
}

// Get checks memory first, then disk
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, c.promoteTTL)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
