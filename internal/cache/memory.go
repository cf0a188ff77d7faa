package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/lawnpro/crew-ops/pkg/logger"
)

// DefaultMemorySize bounds the in-process cache.
const DefaultMemorySize = 128

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryCache implements Cache in process with LRU eviction. Entries are
// not shared between replicas.
type MemoryCache struct {
	entries *lru.Cache
	now     func() time.Time
	log     *logger.Logger
}

// NewMemoryCache creates an LRU cache holding at most size keys.
func NewMemoryCache(size int, log *logger.Logger) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	log.Info().Int("size", size).Msg("Using in-process cache")
	return &MemoryCache{entries: entries, now: time.Now, log: log}, nil
}

// Get retrieves a value. Expired keys read as missing.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	raw, ok := c.entries.Get(key)
	if !ok {
		return "", nil
	}
	entry := raw.(memoryEntry)
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return "", nil
	}
	return entry.value, nil
}

// Set stores a value. A zero expiration keeps the key until evicted.
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	entry := memoryEntry{}
	switch v := value.(type) {
	case string:
		entry.value = v
	case []byte:
		entry.value = string(v)
	default:
		entry.value = fmt.Sprint(v)
	}
	if expiration > 0 {
		entry.expiresAt = c.now().Add(expiration)
	}
	c.entries.Add(key, entry)
	return nil
}

// Del deletes keys.
func (c *MemoryCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		c.entries.Remove(key)
	}
	return nil
}

// Health always succeeds.
func (c *MemoryCache) Health(ctx context.Context) error {
	return nil
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.entries.Purge()
	return nil
}
