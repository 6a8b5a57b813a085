package surface

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/infra"
	"go.uber.org/zap"
)

// Surface — одно открытое окно одобрения. Живет ровно один запрос.
// Контракт: после Show() событие закрытия придет ровно один раз —
// неважно, человек закрыл страницу, решение уже применено или брокер
// закрыл окно программно. Close() идемпотентен.
type Surface struct {
	id      string
	url     string
	closeCh chan struct{}
	once    sync.Once
	ctrl    *Controller
}

// URL — адрес страницы одобрения для оператора.
func (s *Surface) URL() string { return s.url }

// Show отдает источник события закрытия.
func (s *Surface) Show() <-chan struct{} { return s.closeCh }

// Close программно закрывает окно. Повторный вызов — no-op.
func (s *Surface) Close() {
	s.once.Do(func() {
		close(s.closeCh)
		s.ctrl.forget(s.id)
	})
}

// Controller открывает окна одобрения и доставляет им сигналы закрытия,
// приходящие от консоли через Redis Pub/Sub.
type Controller struct {
	rdb     *redis.Client
	baseURL string
	logger  *zap.Logger

	mu   sync.Mutex
	open map[string]*Surface
}

func NewController(rdb *redis.Client, baseURL string, logger *zap.Logger) *Controller {
	return &Controller{
		rdb:     rdb,
		baseURL: baseURL,
		logger:  logger.Named("surface"),
		open:    make(map[string]*Surface),
	}
}

// Open регистрирует окно для запроса. Маршрут подсказывает консоли,
// какой экран рисовать: connect / tx-approval / sign-msg.
func (c *Controller) Open(route string, req *domain.PendingRequest) *Surface {
	q := url.Values{}
	q.Set("reqId", req.ID)

	s := &Surface{
		id:      req.ID,
		url:     fmt.Sprintf("%s/%s?%s", c.baseURL, route, q.Encode()),
		closeCh: make(chan struct{}),
		ctrl:    c,
	}

	c.mu.Lock()
	c.open[req.ID] = s
	c.mu.Unlock()

	c.logger.Info("approval surface opened",
		zap.String("request_id", req.ID),
		zap.String("route", route))
	return s
}

// NotifyClosed — окно запроса закрыто снаружи (оператор ушел со страницы).
// Для неизвестного id — no-op: окно уже закрыто брокером.
func (c *Controller) NotifyClosed(requestID string) {
	c.mu.Lock()
	s := c.open[requestID]
	c.mu.Unlock()

	if s != nil {
		c.logger.Info("approval surface dismissed", zap.String("request_id", requestID))
		s.Close()
	}
}

func (c *Controller) forget(requestID string) {
	c.mu.Lock()
	delete(c.open, requestID)
	c.mu.Unlock()
}

// Listen подписывается на сигналы закрытия от консоли. Блокируется до
// отмены контекста.
func (c *Controller) Listen(ctx context.Context) {
	infra.ListenPatternResilient(ctx, c.rdb, c.logger, infra.RedisChanSurfaceClosed,
		func(requestID string, _ string) {
			c.NotifyClosed(requestID)
		})
}
