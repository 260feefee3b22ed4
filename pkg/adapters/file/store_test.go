package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/prt/pkg/adapters/file"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.CheckpointStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Checkpoint{ID: "run-1", Program: "demo"}))

	data, err := os.ReadFile(filepath.Join(dir, "run-1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "program: demo")

	// stray files are not checkpoints
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}

func TestFileStore_InvalidIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, &domain.Checkpoint{}))
	_, err := store.Load(ctx, "../escape")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, ""))
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
