package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/ports"
)

// MockStore is a map-backed CheckpointStore used to exercise the contract suite itself.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.Checkpoint
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.Checkpoint),
	}
}

func (m *MockStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[cp.ID] = *cp
	return nil
}

func (m *MockStore) Load(ctx context.Context, id string) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.data[id]
	if !ok {
		return nil, domain.ErrCheckpointNotFound
	}
	return &cp, nil
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestCheckpointStore_Contract(t *testing.T) {
	var _ ports.CheckpointStore = NewMockStore()
	ports.RunCheckpointStoreContract(t, NewMockStore())
}
