package history

import (
	"encoding/json"
	"time"
)

// Entry — запись истории транзакций кошелька. Пишется после успешного
// исполнения одобренной транзакции; это пользовательская история,
// а не журнал аудита.
type Entry struct {
	ID        string          `json:"id"`
	RequestID string          `json:"request_id"` // Ссылка на одобренный PendingRequest
	WalletID  string          `json:"wallet_id"`
	AccountID string          `json:"account_id"`
	Address   string          `json:"address"`
	NetworkID string          `json:"network_id"`
	Origin    string          `json:"origin"` // Какой dApp предложил транзакцию
	TxType    string          `json:"tx_type"`
	Response  json.RawMessage `json:"response"` // Ответ ноды (digest, статус)
	Timestamp time.Time       `json:"timestamp"`
}
