package ports

import (
	"context"

	"github.com/aretw0/prt/pkg/domain"
)

// CheckpointStore defines the interface for persisting run checkpoints.
// A checkpoint holds the choice trace that replays a run and the machine
// records it ended with.
type CheckpointStore interface {
	// Save persists the checkpoint under its ID, replacing any previous one.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Load retrieves the checkpoint with the given ID.
	// Returns domain.ErrCheckpointNotFound if it does not exist.
	Load(ctx context.Context, id string) (*domain.Checkpoint, error)

	// Delete removes the checkpoint. Deleting a missing checkpoint is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored checkpoints.
	List(ctx context.Context) ([]string, error)
}
