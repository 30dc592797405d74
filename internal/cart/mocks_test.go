package cart

import (
	"context"
	"sync"

	"github.com/fjod/foodcart/internal/storage"
)

// MockStorage wraps a MemoryStore and can be told to fail writes.
type MockStorage struct {
	*storage.MemoryStore
	mu        sync.Mutex
	PutErr    error
	DeleteErr error
	PutCalls  int
	DelCalls  int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{MemoryStore: storage.NewMemoryStore()}
}

func (m *MockStorage) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.PutCalls++
	err := m.PutErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryStore.Put(ctx, key, value)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.DelCalls++
	err := m.DeleteErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.MemoryStore.Delete(ctx, key)
}
