package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/infra"
)

// ContextStore читает и пишет активный контекст кошелька
// (walletId/accountId/networkId) — одну JSON-запись под известным ключом.
type ContextStore struct {
	rdb *redis.Client
}

func NewContextStore(rdb *redis.Client) *ContextStore {
	return &ContextStore{rdb: rdb}
}

// Load возвращает активный контекст. Отсутствие записи — ошибка:
// без выбранного кошелька dApp-операции не имеют смысла.
func (s *ContextStore) Load(ctx context.Context) (*domain.AppContext, error) {
	raw, err := s.rdb.Get(ctx, infra.RedisKeyAppContext).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load app context: wallet not initialized")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load app context: %w", err)
	}

	var appCtx domain.AppContext
	if err := json.Unmarshal([]byte(raw), &appCtx); err != nil {
		return nil, fmt.Errorf("failed to parse app context: %w", err)
	}
	return &appCtx, nil
}

func (s *ContextStore) Save(ctx context.Context, appCtx *domain.AppContext) error {
	data, err := json.Marshal(appCtx)
	if err != nil {
		return fmt.Errorf("failed to marshal app context: %w", err)
	}
	return s.rdb.Set(ctx, infra.RedisKeyAppContext, data, 0).Err()
}
