package domain

import "time"

// Account — адрес под управлением кошелька. Ключи живут в keystore,
// здесь только публичная часть.
type Account struct {
	ID        string    `json:"id"`
	WalletID  string    `json:"walletId"`
	Address   string    `json:"address"`
	PublicKey string    `json:"publicKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// AccountInfo — форма ответа для dApp.
type AccountInfo struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
}

// Network — метаданные сети, на которой работает активный контекст.
// RPCOverride позволяет подменить full-node без правки основной записи.
type Network struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	QueryRPCURL string    `json:"queryRpcUrl"`
	TxRPCURL    string    `json:"txRpcUrl"`
	RPCOverride string    `json:"rpcOverride,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ExecutionURL — эффективный адрес ноды для отправки транзакций.
func (n *Network) ExecutionURL() string {
	if n.RPCOverride != "" {
		return n.RPCOverride
	}
	return n.TxRPCURL
}

// AppContext — активный выбор пользователя: каким кошельком, аккаунтом
// и сетью сейчас живет система. Хранится одной JSON-записью.
type AppContext struct {
	Initialized bool   `json:"initialized"`
	WalletID    string `json:"walletId"`
	AccountID   string `json:"accountId"`
	NetworkID   string `json:"networkId"`
}
