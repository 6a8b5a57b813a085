package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

func approvedGrant(id, origin, address, networkID string, caps ...domain.Capability) *domain.PermissionGrant {
	approved := true
	return &domain.PermissionGrant{
		ID:          id,
		Permissions: caps,
		Source:      &domain.GrantSource{Origin: origin},
		Target:      &domain.GrantTarget{Address: address},
		NetworkID:   networkID,
		Approved:    &approved,
	}
}

func TestCheckPermissions_GrantedWhenScopeMatches(t *testing.T) {
	store := NewMemoryStore()
	eval := NewEvaluator(store)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, approvedGrant("g1", "https://dapp.io", "0xabc", "mainnet",
		domain.CapViewAccount, domain.CapSuggestTx)))

	res, err := eval.CheckPermissions(ctx,
		[]domain.Capability{domain.CapViewAccount, domain.CapSuggestTx},
		domain.Scope{Origin: "https://dapp.io", Address: "0xabc", NetworkID: "mainnet"})
	require.NoError(t, err)

	assert.True(t, res.Granted)
	assert.Empty(t, res.Missing)
}

func TestCheckPermissions_ScopeIsolation(t *testing.T) {
	store := NewMemoryStore()
	eval := NewEvaluator(store)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, approvedGrant("g1", "https://dapp.io", "0xabc", "mainnet",
		domain.CapViewAccount)))

	// Другой origin, другой адрес, другая сеть — право не перетекает
	cases := []domain.Scope{
		{Origin: "https://evil.io", Address: "0xabc", NetworkID: "mainnet"},
		{Origin: "https://dapp.io", Address: "0xdef", NetworkID: "mainnet"},
		{Origin: "https://dapp.io", Address: "0xabc", NetworkID: "testnet"},
	}
	for _, scope := range cases {
		res, err := eval.CheckPermissions(ctx, []domain.Capability{domain.CapViewAccount}, scope)
		require.NoError(t, err)
		assert.False(t, res.Granted, "scope %+v must not match", scope)
	}
}

func TestCheckPermissions_UnapprovedGrantsIgnored(t *testing.T) {
	store := NewMemoryStore()
	eval := NewEvaluator(store)
	ctx := context.Background()

	denied := false
	require.NoError(t, store.Put(ctx, &domain.PermissionGrant{
		ID:          "g-denied",
		Permissions: []domain.Capability{domain.CapViewAccount},
		Source:      &domain.GrantSource{Origin: "https://dapp.io"},
		Target:      &domain.GrantTarget{Address: "0xabc"},
		NetworkID:   "mainnet",
		Approved:    &denied,
	}))
	// Нерешенная запись (approved == nil) тоже не считается
	require.NoError(t, store.Put(ctx, &domain.PermissionGrant{
		ID:          "g-undecided",
		Permissions: []domain.Capability{domain.CapViewAccount},
		Source:      &domain.GrantSource{Origin: "https://dapp.io"},
		Target:      &domain.GrantTarget{Address: "0xabc"},
		NetworkID:   "mainnet",
	}))

	res, err := eval.CheckPermissions(ctx, []domain.Capability{domain.CapViewAccount},
		domain.Scope{Origin: "https://dapp.io", Address: "0xabc", NetworkID: "mainnet"})
	require.NoError(t, err)

	assert.False(t, res.Granted)
	assert.Equal(t, []domain.Capability{domain.CapViewAccount}, res.Missing)
}

func TestCheckPermissions_LegacyRecordShape(t *testing.T) {
	store := NewMemoryStore()
	eval := NewEvaluator(store)
	ctx := context.Background()

	// Запись старой схемы: origin/address лежат плоскими полями
	approved := true
	require.NoError(t, store.Put(ctx, &domain.PermissionGrant{
		ID:            "g-legacy",
		Permissions:   []domain.Capability{domain.CapViewAccount},
		LegacyOrigin:  "https://old-dapp.io",
		LegacyAddress: "0xabc",
		NetworkID:     "mainnet",
		Approved:      &approved,
	}))

	res, err := eval.CheckPermissions(ctx, []domain.Capability{domain.CapViewAccount},
		domain.Scope{Origin: "https://old-dapp.io", Address: "0xabc", NetworkID: "mainnet"})
	require.NoError(t, err)

	assert.True(t, res.Granted, "legacy shape must evaluate like the new one")
}

func TestCheckPermissions_UnionAcrossGrants(t *testing.T) {
	store := NewMemoryStore()
	eval := NewEvaluator(store)
	ctx := context.Background()

	// Права раздроблены по двум записям — объединение покрывает запрос
	require.NoError(t, store.Put(ctx, approvedGrant("g1", "https://dapp.io", "0xabc", "mainnet",
		domain.CapViewAccount)))
	require.NoError(t, store.Put(ctx, approvedGrant("g2", "https://dapp.io", "0xabc", "mainnet",
		domain.CapSuggestTx)))

	res, err := eval.CheckPermissions(ctx,
		[]domain.Capability{domain.CapViewAccount, domain.CapSuggestTx},
		domain.Scope{Origin: "https://dapp.io", Address: "0xabc", NetworkID: "mainnet"})
	require.NoError(t, err)

	assert.True(t, res.Granted)
}

func TestCheckPermissions_MissingPreservesRequestOrder(t *testing.T) {
	store := NewMemoryStore()
	eval := NewEvaluator(store)

	res, err := eval.CheckPermissions(context.Background(),
		[]domain.Capability{domain.CapSuggestTx, domain.CapViewAccount},
		domain.Scope{Origin: "https://dapp.io", Address: "0xabc", NetworkID: "mainnet"})
	require.NoError(t, err)

	assert.False(t, res.Granted)
	assert.Equal(t, []domain.Capability{domain.CapSuggestTx, domain.CapViewAccount}, res.Missing)
}
