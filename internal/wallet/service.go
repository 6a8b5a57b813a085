package wallet

import (
	"context"

	"github.com/xela07ax/wallet-gate/internal/domain"
	"go.uber.org/zap"
)

// AccountRepository — требования сервиса к реестру аккаунтов и сетей.
type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, walletID string) ([]*domain.Account, error)
	GetNetwork(ctx context.Context, id string) (*domain.Network, error)
}

// AppContextLoader — откуда сервис берет активный выбор пользователя.
type AppContextLoader interface {
	Load(ctx context.Context) (*domain.AppContext, error)
}

// Service — скоуп-лукапы для брокера: активный контекст, аккаунт, сеть.
// Все промахи — NotFoundError, без ретраев.
type Service struct {
	ctxStore AppContextLoader
	repo     AccountRepository
	logger   *zap.Logger
}

func NewService(ctxStore AppContextLoader, repo AccountRepository, logger *zap.Logger) *Service {
	return &Service{
		ctxStore: ctxStore,
		repo:     repo,
		logger:   logger.Named("wallet"),
	}
}

func (s *Service) ActiveContext(ctx context.Context) (*domain.AppContext, error) {
	return s.ctxStore.Load(ctx)
}

// ActiveAccount поднимает аккаунт из активного контекста.
func (s *Service) ActiveAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &domain.NotFoundError{What: "account", ID: accountID}
	}
	return account, nil
}

// Accounts возвращает все аккаунты активного кошелька.
func (s *Service) Accounts(ctx context.Context, walletID string) ([]*domain.Account, error) {
	accounts, err := s.repo.ListAccounts(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, &domain.NotFoundError{What: "accounts in wallet", ID: walletID}
	}
	return accounts, nil
}

// Network поднимает метаданные сети активного контекста.
func (s *Service) Network(ctx context.Context, networkID string) (*domain.Network, error) {
	network, err := s.repo.GetNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}
	if network == nil {
		return nil, &domain.NotFoundError{What: "network metadata", ID: networkID}
	}
	return network, nil
}
