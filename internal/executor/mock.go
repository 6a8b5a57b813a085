package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"
)

// MockNode — заглушка движка исполнения для локальной разработки.
type MockNode struct{}

func (m *MockNode) Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error) {
	// Имитируем задержку сети 50-300мс
	latency := time.Duration(50+rand.IntN(250)) * time.Millisecond

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch req.TxType {
	case "moveCall":
		return json.RawMessage(fmt.Sprintf(
			`{"digest":"mock-%d","status":"success","gasUsed":1024}`, rand.IntN(1_000_000))), nil
	case "failing":
		return nil, fmt.Errorf("insufficient gas")
	default:
		return nil, fmt.Errorf("transaction type is not supported, kind=%s", req.TxType)
	}
}
