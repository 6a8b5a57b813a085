package request

import (
	"context"
	"sync"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

// MemoryStore — in-memory реализация Store для тестов и standalone режима.
type MemoryStore struct {
	mu   sync.RWMutex
	kind domain.RequestKind
	reqs map[string]*domain.PendingRequest
}

func NewMemoryStore(kind domain.RequestKind) *MemoryStore {
	return &MemoryStore{
		kind: kind,
		reqs: make(map[string]*domain.PendingRequest),
	}
}

func (s *MemoryStore) Kind() domain.RequestKind { return s.kind }

func (s *MemoryStore) Create(_ context.Context, p CreateParams) (*domain.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := newRequest(s.kind, p)
	s.reqs[req.ID] = req
	return req, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reqs[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*domain.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*domain.PendingRequest, 0, len(s.reqs))
	for _, r := range s.reqs {
		cp := *r
		list = append(list, &cp)
	}
	return list, nil
}

func (s *MemoryStore) Update(_ context.Context, req *domain.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.reqs[req.ID] = &cp
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reqs, id)
	return nil
}
