package request

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

func TestMemoryStore_CreateAssignsIdentity(t *testing.T) {
	store := NewMemoryStore(domain.KindPermission)
	ctx := context.Background()

	req, err := store.Create(ctx, CreateParams{
		Permissions: []domain.Capability{domain.CapViewAccount},
		Origin:      "https://dapp.io",
		Address:     "0xabc",
		NetworkID:   "mainnet",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.KindPermission, req.Kind)
	assert.Equal(t, domain.StateCreated, req.State)
	assert.Nil(t, req.Approved)
	assert.False(t, req.CreatedAt.IsZero())

	// Идентификаторы не пересекаются между вызовами
	req2, err := store.Create(ctx, CreateParams{Origin: "https://dapp.io"})
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, req2.ID)
}

func TestMemoryStore_GetReturnsNilForUnknown(t *testing.T) {
	store := NewMemoryStore(domain.KindTransaction)

	req, err := store.Get(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestMemoryStore_UpdateReplacesRecord(t *testing.T) {
	store := NewMemoryStore(domain.KindTransaction)
	ctx := context.Background()

	req, err := store.Create(ctx, CreateParams{TxType: "moveCall", Origin: "https://dapp.io"})
	require.NoError(t, err)

	require.NoError(t, req.Finalize(true, time.Now().UTC()))
	require.NoError(t, store.Update(ctx, req))

	got, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StateFinalized, got.State)
	require.NotNil(t, got.Approved)
	assert.True(t, *got.Approved)
}

func TestMemoryStore_RemovePurgesRecord(t *testing.T) {
	store := NewMemoryStore(domain.KindSignMessage)
	ctx := context.Background()

	req, err := store.Create(ctx, CreateParams{Data: "0xdeadbeef", Origin: "https://dapp.io"})
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, req.ID))

	got, err := store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_ListAllSnapshots(t *testing.T) {
	store := NewMemoryStore(domain.KindPermission)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, CreateParams{Origin: "https://dapp.io"})
		require.NoError(t, err)
	}

	list, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestFinalize_SecondVerdictRejected(t *testing.T) {
	store := NewMemoryStore(domain.KindPermission)
	ctx := context.Background()

	req, err := store.Create(ctx, CreateParams{Origin: "https://dapp.io"})
	require.NoError(t, err)

	require.NoError(t, req.Finalize(false, time.Now().UTC()))

	// Поздний вердикт по финализированному id — no-op, действует первый
	err = req.Finalize(true, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	require.NotNil(t, req.Approved)
	assert.False(t, *req.Approved)
}
