package cart

import (
	"context"
	"sync"
)

// MemoryPersister keeps snapshots in process memory.
type MemoryPersister struct {
	mu    sync.RWMutex
	carts map[string]Snapshot
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{carts: make(map[string]Snapshot)}
}

func (m *MemoryPersister) Load(_ context.Context, ownerID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.carts[ownerID]
	if !ok {
		return Clear(), nil
	}
	return s.clone(), nil
}

func (m *MemoryPersister) Save(_ context.Context, ownerID string, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[ownerID] = s.clone()
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, ownerID)
	return nil
}
