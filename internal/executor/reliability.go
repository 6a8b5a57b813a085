package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/wallet-gate/internal/infra"
	"golang.org/x/time/rate"
)

// ReliabilityWrapper оборачивает вызовы ноды в защитную цепочку:
// Rate Limiter -> Circuit Breaker -> Retry с умной задержкой.
type ReliabilityWrapper struct {
	next        Provider
	cb          *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	attempts    uint
	callTimeout time.Duration
}

func NewReliabilityWrapper(next Provider, cfg infra.ExecutorConfig) *ReliabilityWrapper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wallet-node",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ReliabilityWrapper{
		next:        next,
		cb:          cb,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		attempts:    cfg.RetryAttempts,
		callTimeout: cfg.CallTimeout,
	}
}

func (w *ReliabilityWrapper) Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var finalData json.RawMessage

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Нода вернула ThrottleError — уважаем ее Retry-After
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// Иначе (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
			defer cancel()

			var callErr error
			finalData, callErr = w.next.Execute(tCtx, req)
			return callErr
		})

		return finalData, retryErr
	})

	if err != nil {
		return nil, err
	}

	return cbResult.(json.RawMessage), nil
}
