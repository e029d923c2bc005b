package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zentrolabs/zentro/internal/database/testutil"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreFromClient(client, "zentro"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "rt:abc", "42", time.Minute))

	value, err := store.Get(ctx, "rt:abc")
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	require.NoError(t, store.Delete(ctx, "rt:abc"))
	_, err = store.Get(ctx, "rt:abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "rt:ttl", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "rt:ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStoreMissAndPrefix(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	assert.True(t, mr.Exists("zentro:k"), "keys must be namespaced under the prefix")
}

func TestDatabaseStoreRoundTrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Now()
	store := NewDatabaseStore(db, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "rt:abc", "42", time.Minute))

	value, err := store.Get(ctx, "rt:abc")
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	// upsert overwrites
	require.NoError(t, store.Set(ctx, "rt:abc", "43", time.Minute))
	value, err = store.Get(ctx, "rt:abc")
	require.NoError(t, err)
	assert.Equal(t, "43", value)

	require.NoError(t, store.Delete(ctx, "rt:abc"))
	_, err = store.Get(ctx, "rt:abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDatabaseStoreExpiry(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Now()
	store := NewDatabaseStore(db, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", "v", time.Minute))
	require.NoError(t, store.Set(ctx, "forever", "v", 0))

	now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestDatabaseStoreSweepExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Now()
	store := NewDatabaseStore(db, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, store.Set(ctx, "b", "2", time.Hour))
	require.NoError(t, store.Set(ctx, "c", "3", 0))

	now = now.Add(30 * time.Minute)

	removed, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = store.Get(ctx, "b")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "c")
	assert.NoError(t, err)
}
