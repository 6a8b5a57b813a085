package service

/*
Файл approval_service.go — очередь решений оператора (Human-in-the-loop).

Консоль не трогает гонку напрямую: вердикт публикуется в per-request
канал Redis, мост на стороне шлюза доставляет его в шину решений.
Так консоль и шлюз остаются отдельными процессами и композируются
только через Pub/Sub.
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/infra"
	"github.com/xela07ax/wallet-gate/internal/request"
)

type ApprovalService struct {
	stores map[domain.RequestKind]request.Store
	rdb    *redis.Client
	logger *zap.Logger
}

func NewApprovalService(permReqs, txReqs, signReqs request.Store, rdb *redis.Client, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		stores: map[domain.RequestKind]request.Store{
			domain.KindPermission:  permReqs,
			domain.KindTransaction: txReqs,
			domain.KindSignMessage: signReqs,
		},
		rdb:    rdb,
		logger: logger.Named("approvals"),
	}
}

// ListPending — очередь запросов, ждущих решения, по всем трем видам.
// Старые сверху: оператор разбирает очередь в порядке поступления.
func (s *ApprovalService) ListPending(ctx context.Context) ([]*domain.PendingRequest, error) {
	pending := make([]*domain.PendingRequest, 0)
	for _, store := range s.stores {
		reqs, err := store.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range reqs {
			if r.State == domain.StateCreated {
				pending = append(pending, r)
			}
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// GetRequest — детали запроса для экрана одобрения.
func (s *ApprovalService) GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.PendingRequest, error) {
	store, ok := s.stores[kind]
	if !ok {
		return nil, fmt.Errorf("unknown request kind %q", kind)
	}
	req, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &domain.NotFoundError{What: "pending request", ID: id}
	}
	return req, nil
}

// Decide публикует вердикт оператора. Если запрос уже финализирован
// (оператор опоздал, окно закрылось) — ошибка, вердикт не уходит.
func (s *ApprovalService) Decide(ctx context.Context, kind domain.RequestKind, id string, approved bool, reviewerID string) error {
	req, err := s.GetRequest(ctx, kind, id)
	if err != nil {
		return err
	}
	if req.State == domain.StateFinalized {
		return fmt.Errorf("request already processed (id: %s)", id)
	}

	payload, err := json.Marshal(domain.Decision{
		RequestID: id,
		Kind:      kind,
		Approved:  approved,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	if err := s.rdb.Publish(ctx, infra.DecisionChannel(id), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish decision: %w", err)
	}

	s.logger.Info("operator decision published",
		zap.String("request_id", id),
		zap.String("kind", string(kind)),
		zap.Bool("approved", approved),
		zap.String("reviewer_id", reviewerID))
	return nil
}

// ReportClosed — страница одобрения закрыта без решения. Шлюз превратит
// это в консервативный отказ.
func (s *ApprovalService) ReportClosed(ctx context.Context, id string) error {
	if err := s.rdb.Publish(ctx, infra.SurfaceClosedChannel(id), "closed").Err(); err != nil {
		return fmt.Errorf("failed to publish close event: %w", err)
	}
	s.logger.Info("approval surface close reported", zap.String("request_id", id))
	return nil
}
