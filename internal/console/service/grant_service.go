package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/permission"
)

// GrantService — админка выданных прав: посмотреть, отозвать.
type GrantService struct {
	store  permission.Store
	logger *zap.Logger
}

func NewGrantService(store permission.Store, logger *zap.Logger) *GrantService {
	return &GrantService{store: store, logger: logger.Named("grants")}
}

func (s *GrantService) List(ctx context.Context) ([]*domain.PermissionGrant, error) {
	return s.store.ListAll(ctx)
}

// Revoke удаляет запись о правах. Следующий запрос этого dApp уйдет
// по медленному пути заново.
func (s *GrantService) Revoke(ctx context.Context, id string) error {
	grant, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if grant == nil {
		return &domain.NotFoundError{What: "permission grant", ID: id}
	}
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("grant revoked",
		zap.String("grant_id", id),
		zap.String("origin", grant.ScopeOrigin()))
	return nil
}
