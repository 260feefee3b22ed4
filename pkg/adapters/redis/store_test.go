package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/prt/pkg/adapters/redis"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunCheckpointStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Checkpoint{ID: "cp-ttl", Program: "p"}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "cp-ttl")

	// key expiry in miniredis
	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "cp-ttl")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	// the index is pruned against wall-clock time
	time.Sleep(1200 * time.Millisecond)
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Checkpoint{ID: "my-run"}))

	assert.True(t, mr.Exists("custom:app:my-run"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "my-run")
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	require.NoError(t, store.Save(context.Background(), &domain.Checkpoint{ID: "x"}))
	assert.True(t, mr.Exists(redis.DefaultPrefix+"x"))
	assert.Same(t, client, store.Client())
}
