package localcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, maxBytes int64) *Cache {
	cache, err := Open(t.TempDir(), maxBytes)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestSetGetRoundTrip(t *testing.T) {
	cache := openTestCache(t, 1<<20)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "photos", []byte(`[{"id":"p1"}]`)))

	got, err := cache.Get(ctx, "photos")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":"p1"}]`), got)
}

func TestGetMissing(t *testing.T) {
	cache := openTestCache(t, 1<<20)

	_, err := cache.Get(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetOverwrites(t *testing.T) {
	cache := openTestCache(t, 1<<20)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "users", []byte("v1")))
	require.NoError(t, cache.Set(ctx, "users", []byte("v2")))

	got, err := cache.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestQuotaExceeded(t *testing.T) {
	cache := openTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("12345")))

	err := cache.Set(ctx, "b", []byte("1234567"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// The failed write must not leave a partial entry behind.
	_, err = cache.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuotaAccountsForReplacedRow(t *testing.T) {
	cache := openTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("1234567890")))

	// Rewriting the same key with an equal or smaller payload fits even
	// though the budget is already fully used.
	assert.NoError(t, cache.Set(ctx, "a", []byte("123456789")))
	assert.NoError(t, cache.Set(ctx, "a", []byte("123456789X")))

	// Growing past the budget still fails.
	assert.ErrorIs(t, cache.Set(ctx, "a", []byte("12345678901")), ErrQuotaExceeded)
}

func TestSizeBytes(t *testing.T) {
	cache := openTestCache(t, 1<<20)
	ctx := context.Background()

	size, err := cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	require.NoError(t, cache.Set(ctx, "a", []byte("12345")))
	require.NoError(t, cache.Set(ctx, "b", []byte("123")))

	size, err = cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
}

func TestWipe(t *testing.T) {
	cache := openTestCache(t, 1<<20)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "photos", []byte("data")))
	require.NoError(t, cache.Set(ctx, "users", []byte("data")))

	require.NoError(t, cache.Wipe(ctx))

	_, err := cache.Get(ctx, "photos")
	assert.ErrorIs(t, err, ErrNotFound)

	size, err := cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestConcurrentSetsRespectBudget(t *testing.T) {
	cache := openTestCache(t, 10)
	ctx := context.Background()

	// Eight goroutines race 4-byte writes against a 10-byte budget. Only
	// two can ever fit; the rest must fail the quota check rather than
	// slip past it together.
	var wg sync.WaitGroup
	var quotaErrs atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := cache.Set(ctx, fmt.Sprintf("key-%d", n), []byte("abcd"))
			if errors.Is(err, ErrQuotaExceeded) {
				quotaErrs.Add(1)
			} else {
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	size, err := cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, size, int64(10), "concurrent writes must never overshoot the budget")
	assert.Equal(t, int64(6), quotaErrs.Load())
}

func TestWipeRecoversQuota(t *testing.T) {
	cache := openTestCache(t, 10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("1234567890")))
	require.ErrorIs(t, cache.Set(ctx, "b", []byte("x")), ErrQuotaExceeded)

	require.NoError(t, cache.Wipe(ctx))
	assert.NoError(t, cache.Set(ctx, "b", []byte("x")))
}
