package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsDriver(t *testing.T) {
	c, err := New(Options{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(Options{Driver: "lru", Size: 2})
	require.NoError(t, err)
	assert.IsType(t, &LRUCache{}, c)

	c, err = New(Options{Driver: "redis", RedisURL: "redis://localhost:6379/0"})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)

	_, err = New(Options{Driver: "memcached"})
	assert.Error(t, err)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, ok, _ = c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestLRUCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRUCache(2)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "2", time.Minute))
	require.NoError(t, c.Set(ctx, "c", "3", time.Minute))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok, "最旧的条目应被淘汰")

	v, ok, _ := c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "c")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestLRUCacheLastWriterWins(t *testing.T) {
	ctx := context.Background()
	c, err := NewLRUCache(0)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", "first", time.Minute))
	require.NoError(t, c.Set(ctx, "k", "second", time.Minute))
	v, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "similar_movies:1:10")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "similar_movies:1:10", `[{"id":2}]`, time.Hour))
	v, ok, err := c.Get(ctx, "similar_movies:1:10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":2}]`, v)
	assert.Equal(t, time.Hour, mr.TTL("similar_movies:1:10"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "similar_movies:1:10")
	require.NoError(t, err)
	assert.False(t, ok)
}
