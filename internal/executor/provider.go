package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

// ExecuteRequest — одобренная транзакция, уходящая во внешний движок
// исполнения. Брокер не знает, что внутри TxData: полезная нагрузка
// для него непрозрачна.
type ExecuteRequest struct {
	Network   *domain.Network
	WalletID  string
	AccountID string
	TxType    string
	TxData    json.RawMessage
}

// Provider — граница с движком исполнения транзакций.
type Provider interface {
	Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error)
}

// ThrottleError — нода попросила прийти позже (вычитан Retry-After).
// Ретрай-слой уважает эту задержку вместо стандартного бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}
