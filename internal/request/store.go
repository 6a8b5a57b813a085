package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/wallet-gate/internal/domain"
)

// CreateParams — все, что нужно для заведения нового запроса.
// Kind-специфичные поля заполняются по месту вызова.
type CreateParams struct {
	Permissions []domain.Capability
	TxType      string
	TxData      json.RawMessage
	Metadata    json.RawMessage
	Data        string

	Origin    string
	Name      string
	Favicon   string
	Address   string
	NetworkID string
	WalletID  string
	AccountID string
}

// Store — персистентность PendingRequest одного вида.
// Для каждого вида (permission/transaction/sign) заводится свой
// экземпляр со своим ключом хранения; id между ними не пересекаются,
// так как генерируются uuid-ом.
type Store interface {
	Kind() domain.RequestKind
	Create(ctx context.Context, p CreateParams) (*domain.PendingRequest, error)
	Get(ctx context.Context, id string) (*domain.PendingRequest, error)
	ListAll(ctx context.Context) ([]*domain.PendingRequest, error)
	Update(ctx context.Context, req *domain.PendingRequest) error
	Remove(ctx context.Context, id string) error
}

// RedisStore — карта id -> запись одной JSON-записью под ключом вида.
type RedisStore struct {
	rdb  *redis.Client
	key  string
	kind domain.RequestKind
	mu   sync.Mutex
}

func NewRedisStore(rdb *redis.Client, key string, kind domain.RequestKind) *RedisStore {
	return &RedisStore{rdb: rdb, key: key, kind: kind}
}

func (s *RedisStore) Kind() domain.RequestKind { return s.kind }

func (s *RedisStore) loadMap(ctx context.Context) (map[string]*domain.PendingRequest, error) {
	raw, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		// Самовосстановление: отсутствие записи — пустая карта
		if err := s.rdb.Set(ctx, s.key, "{}", 0).Err(); err != nil {
			return nil, fmt.Errorf("request store %s: reset failed: %w", s.kind, err)
		}
		return map[string]*domain.PendingRequest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("request store %s: load failed: %w", s.kind, err)
	}

	reqs := make(map[string]*domain.PendingRequest)
	if err := json.Unmarshal([]byte(raw), &reqs); err != nil {
		return nil, fmt.Errorf("request store %s: corrupt record: %w", s.kind, err)
	}
	return reqs, nil
}

func (s *RedisStore) saveMap(ctx context.Context, reqs map[string]*domain.PendingRequest) error {
	data, err := json.Marshal(reqs)
	if err != nil {
		return fmt.Errorf("request store %s: marshal failed: %w", s.kind, err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("request store %s: save failed: %w", s.kind, err)
	}
	return nil
}

func (s *RedisStore) Create(ctx context.Context, p CreateParams) (*domain.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := newRequest(s.kind, p)

	reqs, err := s.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	reqs[req.ID] = req
	if err := s.saveMap(ctx, reqs); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs, err := s.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	return reqs[id], nil
}

// ListAll возвращает снапшот всех записей вида — очередь для консоли.
func (s *RedisStore) ListAll(ctx context.Context) ([]*domain.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs, err := s.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]*domain.PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		list = append(list, r)
	}
	return list, nil
}

// Update — полная замена записи по id.
func (s *RedisStore) Update(ctx context.Context, req *domain.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs, err := s.loadMap(ctx)
	if err != nil {
		return err
	}
	reqs[req.ID] = req
	return s.saveMap(ctx, reqs)
}

// Remove используется sign-флоу: подписанное сообщение не должно
// задерживаться в персистентном хранилище после принятия решения.
func (s *RedisStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs, err := s.loadMap(ctx)
	if err != nil {
		return err
	}
	delete(reqs, id)
	return s.saveMap(ctx, reqs)
}

// newRequest — общий конструктор записи: свежий uuid, состояние CREATED.
func newRequest(kind domain.RequestKind, p CreateParams) *domain.PendingRequest {
	return &domain.PendingRequest{
		ID:          uuid.New().String(),
		Kind:        kind,
		State:       domain.StateCreated,
		Permissions: p.Permissions,
		TxType:      p.TxType,
		TxData:      p.TxData,
		Metadata:    p.Metadata,
		Data:        p.Data,
		Origin:      p.Origin,
		Name:        p.Name,
		Favicon:     p.Favicon,
		Address:     p.Address,
		NetworkID:   p.NetworkID,
		WalletID:    p.WalletID,
		AccountID:   p.AccountID,
		CreatedAt:   time.Now().UTC(),
	}
}
