package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cimillas/ticket-inventory/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("skipping redis tests: TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("skipping redis tests: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAvailabilityCache_RoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	cache := NewAvailabilityCache(client, time.Minute)
	unitID := uuid.NewString()

	_, ok, err := cache.Get(ctx, unitID)
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.Availability{UnitID: unitID, CapacityTotal: 10, Reserved: 3, Sold: 2, Available: 5}
	require.NoError(t, cache.Set(ctx, want))

	got, ok, err := cache.Get(ctx, unitID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, cache.Invalidate(ctx, unitID))
	_, ok, err = cache.Get(ctx, unitID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLock_SingleHolder(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "inventory:test-lock:" + uuid.NewString()

	a := NewLock(client, key, time.Minute)
	b := NewLock(client, key, time.Minute)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Releasing someone else's lease is a no-op.
	require.NoError(t, b.Release(ctx))
	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx))
}
