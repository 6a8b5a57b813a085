package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/request"
)

func newApprovalEnv() (*ApprovalService, *request.MemoryStore, *request.MemoryStore, *request.MemoryStore) {
	permReqs := request.NewMemoryStore(domain.KindPermission)
	txReqs := request.NewMemoryStore(domain.KindTransaction)
	signReqs := request.NewMemoryStore(domain.KindSignMessage)
	svc := NewApprovalService(permReqs, txReqs, signReqs, nil, zap.NewNop())
	return svc, permReqs, txReqs, signReqs
}

func TestListPending_FiltersFinalizedAndSorts(t *testing.T) {
	svc, permReqs, txReqs, _ := newApprovalEnv()
	ctx := context.Background()

	first, err := permReqs.Create(ctx, request.CreateParams{Origin: "https://a.io"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	second, err := txReqs.Create(ctx, request.CreateParams{TxType: "moveCall", Origin: "https://b.io"})
	require.NoError(t, err)

	// Финализированный запрос в очереди не показывается
	done, err := permReqs.Create(ctx, request.CreateParams{Origin: "https://c.io"})
	require.NoError(t, err)
	require.NoError(t, done.Finalize(true, time.Now().UTC()))
	require.NoError(t, permReqs.Update(ctx, done))

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)

	require.Len(t, pending, 2)
	// Старые сверху
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestGetRequest_UnknownIDIsNotFound(t *testing.T) {
	svc, _, _, _ := newApprovalEnv()

	_, err := svc.GetRequest(context.Background(), domain.KindPermission, "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestGetRequest_UnknownKindRejected(t *testing.T) {
	svc, _, _, _ := newApprovalEnv()

	_, err := svc.GetRequest(context.Background(), "WEIRD", "id")
	assert.Error(t, err)
}
