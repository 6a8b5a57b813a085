package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/wallet-gate/internal/domain"
)

// Store — персистентность записей о выданных правах.
// Вся карта grant-id -> PermissionGrant лежит одной JSON-записью под
// общеизвестным ключом: так же хранило ее браузерное расширение, и эта
// схема переживает чтение записей обеих поколений.
type Store interface {
	Get(ctx context.Context, id string) (*domain.PermissionGrant, error)
	Put(ctx context.Context, grant *domain.PermissionGrant) error
	ListAll(ctx context.Context) ([]*domain.PermissionGrant, error)
	Remove(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// RedisStore хранит запись в Redis. Все мутации — цельное
// read-modify-write под мьютексом: хранилище одно на процесс,
// межпроцессный конфликт исключен тем, что пишет только брокер.
type RedisStore struct {
	rdb *redis.Client
	key string
	mu  sync.Mutex
}

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

// loadMap читает карту целиком. Отсутствие записи — не ошибка:
// хранилище самовосстанавливается через Reset ровно один раз.
func (s *RedisStore) loadMap(ctx context.Context) (map[string]*domain.PermissionGrant, error) {
	raw, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		if err := s.Reset(ctx); err != nil {
			return nil, err
		}
		return map[string]*domain.PermissionGrant{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission store: load failed: %w", err)
	}

	grants := make(map[string]*domain.PermissionGrant)
	if err := json.Unmarshal([]byte(raw), &grants); err != nil {
		// Битый JSON — фатально для операции, молча не затираем
		return nil, fmt.Errorf("permission store: corrupt record: %w", err)
	}
	return grants, nil
}

func (s *RedisStore) saveMap(ctx context.Context, grants map[string]*domain.PermissionGrant) error {
	data, err := json.Marshal(grants)
	if err != nil {
		return fmt.Errorf("permission store: marshal failed: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("permission store: save failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.PermissionGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grants, err := s.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	return grants[id], nil
}

func (s *RedisStore) Put(ctx context.Context, grant *domain.PermissionGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grants, err := s.loadMap(ctx)
	if err != nil {
		return err
	}
	grants[grant.ID] = grant
	return s.saveMap(ctx, grants)
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*domain.PermissionGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grants, err := s.loadMap(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]*domain.PermissionGrant, 0, len(grants))
	for _, g := range grants {
		list = append(list, g)
	}
	return list, nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grants, err := s.loadMap(ctx)
	if err != nil {
		return err
	}
	delete(grants, id)
	return s.saveMap(ctx, grants)
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.rdb.Set(ctx, s.key, "{}", 0).Err(); err != nil {
		return fmt.Errorf("permission store: reset failed: %w", err)
	}
	return nil
}
