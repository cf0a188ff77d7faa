package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnpro/crew-ops/pkg/logger"
)

func setupMemoryCache(t *testing.T, size int) (*MemoryCache, *time.Time) {
	t.Helper()

	c, err := NewMemoryCache(size, logger.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_GetSetDel(t *testing.T) {
	c, _ := setupMemoryCache(t, 0)
	ctx := context.Background()

	val, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, c.Set(ctx, "leaderboard:week", `[{"rank":1}]`, time.Minute))
	require.NoError(t, c.Set(ctx, "count", 42, 0))

	val, err = c.Get(ctx, "leaderboard:week")
	require.NoError(t, err)
	assert.Equal(t, `[{"rank":1}]`, val)

	val, err = c.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, "42", val)

	require.NoError(t, c.Del(ctx, "leaderboard:week", "count", "never-set"))
	val, err = c.Get(ctx, "leaderboard:week")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, now := setupMemoryCache(t, 4)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	*now = now.Add(59 * time.Second)
	val, _ := c.Get(ctx, "k")
	assert.Equal(t, "v", val)

	*now = now.Add(time.Second)
	val, _ = c.Get(ctx, "k")
	assert.Empty(t, val, "expired at exactly the TTL")
}

func TestMemoryCache_Eviction(t *testing.T) {
	c, _ := setupMemoryCache(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	_, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", "3", 0))

	val, _ := c.Get(ctx, "b")
	assert.Empty(t, val, "least recently used key is evicted")
	val, _ = c.Get(ctx, "a")
	assert.Equal(t, "1", val)
}

func TestMemoryCache_HealthAndClose(t *testing.T) {
	c, _ := setupMemoryCache(t, 0)
	ctx := context.Background()

	assert.NoError(t, c.Health(ctx))
	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Close())

	val, _ := c.Get(ctx, "k")
	assert.Empty(t, val)
}
