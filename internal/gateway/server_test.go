package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/broker"
	"github.com/xela07ax/wallet-gate/internal/decision"
	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/executor"
	"github.com/xela07ax/wallet-gate/internal/permission"
	"github.com/xela07ax/wallet-gate/internal/request"
	"github.com/xela07ax/wallet-gate/internal/signer"
	"github.com/xela07ax/wallet-gate/internal/surface"
	"github.com/xela07ax/wallet-gate/internal/wallet"
)

type stubCtxLoader struct{}

func (stubCtxLoader) Load(_ context.Context) (*domain.AppContext, error) {
	return &domain.AppContext{Initialized: true, WalletID: "w1", AccountID: "a1", NetworkID: "mainnet"}, nil
}

type stubAccountRepo struct{}

func (stubAccountRepo) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	if id != "a1" {
		return nil, nil
	}
	return &domain.Account{ID: "a1", WalletID: "w1", Address: "0xabc", PublicKey: "pub-a1"}, nil
}

func (stubAccountRepo) ListAccounts(_ context.Context, _ string) ([]*domain.Account, error) {
	return []*domain.Account{{ID: "a1", WalletID: "w1", Address: "0xabc", PublicKey: "pub-a1"}}, nil
}

func (stubAccountRepo) GetNetwork(_ context.Context, id string) (*domain.Network, error) {
	return &domain.Network{ID: id, TxRPCURL: "http://node:9000"}, nil
}

func newTestServer(t *testing.T) (*Server, *permission.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	grants := permission.NewMemoryStore()

	core := broker.New(
		permission.NewEvaluator(grants),
		grants,
		request.NewMemoryStore(domain.KindPermission),
		request.NewMemoryStore(domain.KindTransaction),
		request.NewMemoryStore(domain.KindSignMessage),
		decision.NewBus(logger),
		surface.NewController(nil, "http://localhost:8000/approve", logger),
		wallet.NewService(stubCtxLoader{}, stubAccountRepo{}, logger),
		&executor.MockNode{},
		signer.NewDerivedSigner(),
		nil,
		logger,
		broker.NewMetrics(nil),
	)
	return NewServer(core, logger), grants
}

func seedGrant(t *testing.T, grants *permission.MemoryStore) {
	t.Helper()
	approved := true
	require.NoError(t, grants.Put(context.Background(), &domain.PermissionGrant{
		ID:          "seed",
		Permissions: []domain.Capability{domain.CapViewAccount, domain.CapSuggestTx},
		Source:      &domain.GrantSource{Origin: "https://dapp.io"},
		Target:      &domain.GrantTarget{Address: "0xabc"},
		NetworkID:   "mainnet",
		Approved:    &approved,
	}))
}

func post(t *testing.T, srv *Server, path string, params interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rawParams, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]interface{}{
		"params":  json.RawMessage(rawParams),
		"context": map[string]string{"origin": "https://dapp.io", "name": "Test Dapp"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestGateway_MalformedBodyIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/dapp/connect", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestGateway_InvalidParamsIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := post(t, srv, "/v1/dapp/connect", map[string]interface{}{"permissions": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateway_NoPermissionIs403WithMissing(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := post(t, srv, "/v1/dapp/accounts-info", map[string]interface{}{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error        string              `json:"error"`
		MissingPerms []domain.Capability `json:"missingPerms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []domain.Capability{domain.CapViewAccount}, body.MissingPerms)
}

func TestGateway_AccountsInfoWithGrant(t *testing.T) {
	srv, grants := newTestServer(t)
	seedGrant(t, grants)

	rec := post(t, srv, "/v1/dapp/accounts-info", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []domain.AccountInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "0xabc", infos[0].Address)
}

func TestGateway_PublicKeyWithGrant(t *testing.T) {
	srv, grants := newTestServer(t)
	seedGrant(t, grants)

	rec := post(t, srv, "/v1/dapp/public-key", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pub-a1", body["publicKey"])
}

func TestGateway_FastPathConnect(t *testing.T) {
	srv, grants := newTestServer(t)
	seedGrant(t, grants)

	// Права уже выданы: connect отвечает сразу, без гонки
	rec := post(t, srv, "/v1/dapp/connect", map[string]interface{}{
		"permissions": []string{"viewAccount", "suggestTransactions"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["granted"])
}

func TestGateway_HasPermissions(t *testing.T) {
	srv, grants := newTestServer(t)
	seedGrant(t, grants)

	rec := post(t, srv, "/v1/dapp/permissions", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*domain.PermissionGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}
