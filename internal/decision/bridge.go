package decision

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/infra"
	"go.uber.org/zap"
)

// Bridge переливает решения операторов из Redis Pub/Sub во внутреннюю
// шину шлюза. Консоль публикует решение в канал конкретного запроса
// (wallet:approvals:decision:{id}); мост слушает все семейство разом.
type Bridge struct {
	rdb    *redis.Client
	bus    *Bus
	logger *zap.Logger
}

func NewBridge(rdb *redis.Client, bus *Bus, logger *zap.Logger) *Bridge {
	return &Bridge{
		rdb:    rdb,
		bus:    bus,
		logger: logger.Named("decision-bridge"),
	}
}

// Listen блокируется до отмены контекста. Переподключения и бэкофф
// внутри; потерянное во время разрыва решение не ретраится — гонка
// такого запроса закончится fallback-ом при закрытии окна.
func (b *Bridge) Listen(ctx context.Context) {
	infra.ListenPatternResilient(ctx, b.rdb, b.logger, infra.RedisChanDecisions,
		func(requestID string, payload string) {
			var d domain.Decision
			if err := json.Unmarshal([]byte(payload), &d); err != nil {
				b.logger.Error("invalid decision payload",
					zap.String("request_id", requestID), zap.Error(err))
				return
			}
			if d.RequestID == "" {
				d.RequestID = requestID
			}

			b.logger.Info("operator decision received",
				zap.String("request_id", d.RequestID),
				zap.String("kind", string(d.Kind)),
				zap.Bool("approved", d.Approved))

			b.bus.Publish(d)
		})
}
