package checkpoint_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/prt/pkg/adapters/memory"
	"github.com/aretw0/prt/pkg/adapters/redis"
	"github.com/aretw0/prt/pkg/checkpoint"
	"github.com/aretw0/prt/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke lost updates if locking is missing.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Load(ctx context.Context, id string) (*domain.Checkpoint, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func TestManager_UpdateSerializes(t *testing.T) {
	mgr := checkpoint.NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, &domain.Checkpoint{ID: "counter"}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.Update(ctx, "counter", func(cp *domain.Checkpoint) error {
				cp.Steps++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cp, err := mgr.Load(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, 20, cp.Steps)
}

func TestManager_UpdateAbortsOnError(t *testing.T) {
	mgr := checkpoint.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, &domain.Checkpoint{ID: "cp", Steps: 1}))

	boom := errors.New("boom")
	err := mgr.Update(ctx, "cp", func(cp *domain.Checkpoint) error {
		cp.Steps = 100
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cp, err := mgr.Load(ctx, "cp")
	require.NoError(t, err)
	assert.Equal(t, 1, cp.Steps)

	err = mgr.Update(ctx, "missing", func(*domain.Checkpoint) error { return nil })
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewFromClient(client)
	mgr := checkpoint.NewManager(store,
		checkpoint.WithLocker(redis.NewLocker(client, "test:")),
		checkpoint.WithLockTTL(5*time.Second),
	)
	ctx := context.Background()

	err := mgr.WithLock(ctx, "run-1", func(ctx context.Context) error {
		assert.True(t, mr.Exists("test:lock:run-1"), "distributed lock is held inside WithLock")
		return store.Save(ctx, &domain.Checkpoint{ID: "run-1"})
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:run-1"))
}
