package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisDedupStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDedupStore(client), mr
}

func TestMarkIfNewOnlyOnce(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	fresh, err := store.MarkIfNew(ctx, "SVT-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkIfNew(ctx, "SVT-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh)

	assert.True(t, mr.Exists("svt:archived:SVT-1"))
	assert.Equal(t, time.Hour, mr.TTL("svt:archived:SVT-1"))
}

func TestMarkExpiresAfterTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.MarkIfNew(ctx, "SVT-1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	fresh, err := store.MarkIfNew(ctx, "SVT-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestForgetReleasesMark(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.MarkIfNew(ctx, "SVT-1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "SVT-1"))

	fresh, err := store.MarkIfNew(ctx, "SVT-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMarkIfNewReportsUnavailableRedis(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.MarkIfNew(context.Background(), "SVT-1", time.Hour)
	assert.Error(t, err)
}

func TestConnectAcceptsURLAndAddress(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, target := range []string{mr.Addr(), "redis://" + mr.Addr()} {
		client, err := Connect(context.Background(), target)
		require.NoError(t, err, target)
		require.NoError(t, client.Close())
	}

	_, err := Connect(context.Background(), "redis://%zz")
	assert.Error(t, err)
}
