package strapi_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	entry := &strapi.CacheEntry{
		Data:      []byte(`{"uid":"api::article.article"}`),
		ExpiresAt: time.Now().Add(1 * time.Hour),
		ETag:      "abc123",
	}

	err := cache.Set(ctx, "api::article.article", entry)
	require.NoError(t, err)

	retrieved, err := cache.Get(ctx, "api::article.article")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, entry.ETag, retrieved.ETag)
}

func TestMemoryCache_Misses(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	_, err := cache.Get(ctx, "nonexistent")
	require.ErrorIs(t, err, strapi.ErrCacheMiss)
	assert.Contains(t, err.Error(), "key not found")

	_ = cache.Set(ctx, "old", &strapi.CacheEntry{Data: []byte("x"), ExpiresAt: time.Now().Add(-time.Hour)})

	_, err = cache.Get(ctx, "old")
	require.ErrorIs(t, err, strapi.ErrCacheMiss)
	assert.Contains(t, err.Error(), "entry expired")
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_ZeroExpiryNeverExpires(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	_ = cache.Set(ctx, "forever", &strapi.CacheEntry{Data: []byte("x")})
	assert.True(t, cache.Has(ctx, "forever"))
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_ = cache.Set(ctx, key, &strapi.CacheEntry{Data: []byte(key)})
	}

	require.NoError(t, cache.Delete(ctx, "a"))
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Has(ctx, "b"))
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_MaxSize(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(2)
	ctx := context.Background()

	for i, key := range []string{"a", "b", "c"} {
		_ = cache.Set(ctx, key, &strapi.CacheEntry{
			Data:      []byte(key),
			ExpiresAt: time.Now().Add(time.Duration(i+1) * time.Hour),
		})
	}

	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	_ = cache.Set(ctx, "expired", &strapi.CacheEntry{ExpiresAt: time.Now().Add(-time.Hour)})
	_ = cache.Set(ctx, "valid", &strapi.CacheEntry{ExpiresAt: time.Now().Add(time.Hour)})

	cache.Cleanup()

	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Has(ctx, "valid"))
}

func TestNoOpCache(t *testing.T) {
	t.Parallel()

	cache := strapi.NewNoOpCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", &strapi.CacheEntry{}))
	assert.False(t, cache.Has(ctx, "k"))

	_, err := cache.Get(ctx, "k")
	require.ErrorIs(t, err, strapi.ErrCacheDisabled)
	require.ErrorIs(t, err, strapi.ErrCacheMiss)
	require.NoError(t, cache.Delete(ctx, "k"))
	require.NoError(t, cache.Clear(ctx))
}

func TestCacheChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l1 := strapi.NewMemoryCache(10)
	l2 := strapi.NewMemoryCache(10)
	chain := strapi.NewCacheChain(l1, l2)

	_ = l2.Set(ctx, "k", &strapi.CacheEntry{Data: []byte("v")})
	assert.False(t, l1.Has(ctx, "k"))

	entry, err := chain.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), entry.Data)
	assert.True(t, l1.Has(ctx, "k"), "L1 should be back-filled")

	require.NoError(t, chain.Delete(ctx, "k"))
	assert.False(t, chain.Has(ctx, "k"))

	_, err = chain.Get(ctx, "k")
	require.ErrorIs(t, err, strapi.ErrCacheMiss)

	require.NoError(t, chain.Set(ctx, "x", &strapi.CacheEntry{}))
	assert.True(t, l1.Has(ctx, "x"))
	assert.True(t, l2.Has(ctx, "x"))

	require.NoError(t, chain.Clear(ctx))
	assert.False(t, chain.Has(ctx, "x"))
}

func TestNewCacheFromConfig(t *testing.T) {
	t.Parallel()

	cache, err := strapi.NewCacheFromConfig(nil)
	require.NoError(t, err)
	assert.IsType(t, &strapi.MemoryCache{}, cache)

	cache, err = strapi.NewCacheBuilder().WithType(strapi.CacheTypeNone).Build()
	require.NoError(t, err)
	assert.IsType(t, &strapi.NoOpCache{}, cache)

	_, err = strapi.NewCacheBuilder().WithType(strapi.CacheTypeNATS).Build()
	require.ErrorIs(t, err, strapi.ErrNATSConfigRequired)

	_, err = strapi.NewCacheFromConfig(&strapi.CacheConfig{Type: "redis"})
	require.ErrorIs(t, err, strapi.ErrUnsupportedCacheType)
}

func TestNATSKVCache(t *testing.T) {
	t.Parallel()

	url := os.Getenv("STRAPI_TEST_NATS_URL")
	if url == "" {
		t.Skip("STRAPI_TEST_NATS_URL not set")
	}

	cache, err := strapi.NewNATSKVCache(&strapi.NATSKVConfig{URL: url, Bucket: "strapi_client_test", TTL: time.Minute})
	require.NoError(t, err)

	defer cache.Close()

	ctx := context.Background()
	key := "api::article.article"

	require.NoError(t, cache.Set(ctx, key, &strapi.CacheEntry{Data: []byte(`{"a":1}`)}))

	entry, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(entry.Data))

	require.NoError(t, cache.Delete(ctx, key))

	_, err = cache.Get(ctx, key)
	require.ErrorIs(t, err, strapi.ErrCacheMiss)
}
