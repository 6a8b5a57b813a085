package permission

import (
	"context"
	"sync"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

// MemoryStore — in-memory реализация Store для тестов и standalone режима.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string]*domain.PermissionGrant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]*domain.PermissionGrant)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.PermissionGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[id], nil
}

func (s *MemoryStore) Put(_ context.Context, grant *domain.PermissionGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.ID] = grant
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*domain.PermissionGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*domain.PermissionGrant, 0, len(s.grants))
	for _, g := range s.grants {
		list = append(list, g)
	}
	return list, nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, id)
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = make(map[string]*domain.PermissionGrant)
	return nil
}
