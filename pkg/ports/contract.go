package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	id := "contract-test-checkpoint-" + time.Now().Format("20060102150405")

	newCheckpoint := func(id string) *domain.Checkpoint {
		return &domain.Checkpoint{
			ID:      id,
			RunID:   "run-" + id,
			Program: "contract",
			Seed:    7,
			Steps:   3,
			Choices: []domain.Choice{
				{Kind: domain.ChoiceSchedule, Value: 1},
				{Kind: domain.ChoiceBool, Value: 0},
			},
			Machines: []domain.MachineRecord{{
				ID:     "m-1",
				Type:   "Main",
				Phase:  "idle",
				Buffer: []domain.EventRecord{{Event: "ping", Payload: "hello"}},
				States: []domain.FrameRecord{{State: "Init", Temperature: domain.Hot, Deferred: []string{"pong"}}},
			}},
			CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		cp := newCheckpoint(id)
		require.NoError(t, store.Save(ctx, cp), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, cp.RunID, loaded.RunID)
		assert.Equal(t, cp.Seed, loaded.Seed)
		assert.Equal(t, cp.Choices, loaded.Choices)
		assert.True(t, cp.CreatedAt.Equal(loaded.CreatedAt))
		require.Len(t, loaded.Machines, 1)
		m := loaded.Machines[0]
		assert.Equal(t, domain.MachineID("m-1"), m.ID)
		assert.Equal(t, domain.Hot, m.States[0].Temperature)
		assert.Equal(t, []string{"pong"}, m.States[0].Deferred)
		// Payloads go through serialization; only check they survive.
		require.Len(t, m.Buffer, 1)
		assert.Equal(t, "hello", m.Buffer[0].Payload)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		cp := newCheckpoint(id)
		cp.Steps = 99
		require.NoError(t, store.Save(ctx, cp))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 99, loaded.Steps)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newCheckpoint(id)))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound, "Load after Delete should return ErrCheckpointNotFound")

		assert.NoError(t, store.Delete(ctx, id), "Delete of a missing checkpoint is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		require.NoError(t, store.Save(ctx, newCheckpoint(id1)))
		require.NoError(t, store.Save(ctx, newCheckpoint(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
