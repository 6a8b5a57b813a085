package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// NodeClient говорит с full-node сети по JSON-RPC 2.0.
// Адрес берется из записи сети (с учетом RPC override).
type NodeClient struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewNodeClient(logger *zap.Logger) *NodeClient {
	return &NodeClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.Named("node-client"),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Execute реализует Provider: транслирует одобренный запрос в вызов ноды.
func (c *NodeClient) Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error) {
	var txData map[string]interface{}
	if err := json.Unmarshal(req.TxData, &txData); err != nil {
		return nil, fmt.Errorf("node: failed to unmarshal tx payload: %w", err)
	}

	params := []interface{}{
		map[string]interface{}{
			"walletId":  req.WalletID,
			"accountId": req.AccountID,
			"txType":    req.TxType,
			"tx":        txData,
		},
	}

	return c.call(ctx, req.Network.ExecutionURL(), "wallet_executeTransaction", params)
}

func (c *NodeClient) call(ctx context.Context, endpoint, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("node: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("node: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("node: call failed: %w", err)
	}
	defer resp.Body.Close()

	// Нода может троттлить — вычитываем Retry-After для умного ретрая
	if resp.StatusCode == http.StatusTooManyRequests {
		delay := 5 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				delay = time.Duration(secs) * time.Second
			}
		}
		return nil, &ThrottleError{RetryAfter: delay, Cause: fmt.Errorf("http 429 from %s", endpoint)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("node: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node: http %d: %s", resp.StatusCode, raw)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("node: invalid json-rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		// Ошибки исполнения не переинтерпретируем — текст уходит вызывающему как есть
		return nil, fmt.Errorf("%s", rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}
