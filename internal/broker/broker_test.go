package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/decision"
	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/executor"
	"github.com/xela07ax/wallet-gate/internal/history"
	"github.com/xela07ax/wallet-gate/internal/permission"
	"github.com/xela07ax/wallet-gate/internal/request"
	"github.com/xela07ax/wallet-gate/internal/signer"
	"github.com/xela07ax/wallet-gate/internal/surface"
	"github.com/xela07ax/wallet-gate/internal/wallet"
)

type fakeCtxLoader struct {
	appCtx *domain.AppContext
}

func (f *fakeCtxLoader) Load(_ context.Context) (*domain.AppContext, error) {
	if f.appCtx == nil {
		return nil, errors.New("failed to load app context: wallet not initialized")
	}
	return f.appCtx, nil
}

type fakeAccountRepo struct {
	accounts map[string]*domain.Account
	networks map[string]*domain.Network
}

func (f *fakeAccountRepo) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	return f.accounts[id], nil
}

func (f *fakeAccountRepo) ListAccounts(_ context.Context, walletID string) ([]*domain.Account, error) {
	list := make([]*domain.Account, 0)
	for _, a := range f.accounts {
		if a.WalletID == walletID {
			list = append(list, a)
		}
	}
	return list, nil
}

func (f *fakeAccountRepo) GetNetwork(_ context.Context, id string) (*domain.Network, error) {
	return f.networks[id], nil
}

type fakeNode struct {
	mu    sync.Mutex
	resp  json.RawMessage
	err   error
	calls int
}

func (f *fakeNode) Execute(_ context.Context, _ executor.ExecuteRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

func (f *fakeNode) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeHistory) Record(e history.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeHistory) all() []history.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]history.Entry(nil), f.entries...)
}

type env struct {
	broker   *Broker
	grants   *permission.MemoryStore
	permReqs *request.MemoryStore
	txReqs   *request.MemoryStore
	signReqs *request.MemoryStore
	bus      *decision.Bus
	surfaces *surface.Controller
	node     *fakeNode
	hist     *fakeHistory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()

	e := &env{
		grants:   permission.NewMemoryStore(),
		permReqs: request.NewMemoryStore(domain.KindPermission),
		txReqs:   request.NewMemoryStore(domain.KindTransaction),
		signReqs: request.NewMemoryStore(domain.KindSignMessage),
		bus:      decision.NewBus(logger),
		surfaces: surface.NewController(nil, "http://localhost:8000/approve", logger),
		node:     &fakeNode{resp: json.RawMessage(`{"digest":"0x1","status":"success"}`)},
		hist:     &fakeHistory{},
	}

	walletSvc := wallet.NewService(
		&fakeCtxLoader{appCtx: &domain.AppContext{
			Initialized: true,
			WalletID:    "w1",
			AccountID:   "a1",
			NetworkID:   "mainnet",
		}},
		&fakeAccountRepo{
			accounts: map[string]*domain.Account{
				"a1": {ID: "a1", WalletID: "w1", Address: "0xabc", PublicKey: "pub-a1"},
			},
			networks: map[string]*domain.Network{
				"mainnet": {ID: "mainnet", TxRPCURL: "http://node:9000"},
			},
		},
		logger,
	)

	e.broker = New(
		permission.NewEvaluator(e.grants),
		e.grants,
		e.permReqs, e.txReqs, e.signReqs,
		e.bus,
		e.surfaces,
		walletSvc,
		e.node,
		signer.NewDerivedSigner(),
		e.hist,
		logger,
		NewMetrics(nil),
	)
	return e
}

func session() Session {
	return Session{Origin: "https://dapp.io", Name: "Test Dapp"}
}

// grantAll выдает скоупу тестовой сессии оба права, минуя флоу подключения.
func grantAll(t *testing.T, e *env) {
	t.Helper()
	approved := true
	require.NoError(t, e.grants.Put(context.Background(), &domain.PermissionGrant{
		ID:          "seed-grant",
		Permissions: []domain.Capability{domain.CapViewAccount, domain.CapSuggestTx},
		Source:      &domain.GrantSource{Origin: "https://dapp.io"},
		Target:      &domain.GrantTarget{Address: "0xabc"},
		NetworkID:   "mainnet",
		Approved:    &approved,
	}))
}

// waitPending дожидается появления запроса в хранилище — гонка уже висит
// на подписке и ее можно будить.
func waitPending(t *testing.T, store request.Store) *domain.PendingRequest {
	t.Helper()
	var req *domain.PendingRequest
	require.Eventually(t, func() bool {
		list, err := store.ListAll(context.Background())
		if err != nil || len(list) == 0 {
			return false
		}
		req = list[0]
		return true
	}, 2*time.Second, 5*time.Millisecond, "pending request did not appear")
	return req
}

func decide(e *env, req *domain.PendingRequest, approved bool) {
	// Даем гонке время подписаться после создания записи
	time.Sleep(20 * time.Millisecond)
	e.bus.Publish(domain.Decision{
		RequestID: req.ID,
		Kind:      req.Kind,
		Approved:  approved,
		UpdatedAt: time.Now().UTC(),
	})
}

func TestConnect_FastPathSkipsSurface(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	granted, err := e.broker.Connect(context.Background(),
		[]domain.Capability{domain.CapViewAccount, domain.CapSuggestTx}, session())
	require.NoError(t, err)
	assert.True(t, granted)

	// Быстрый путь: ни записи, ни окна
	list, err := e.permReqs.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConnect_ApprovedByOperator(t *testing.T) {
	e := newEnv(t)

	result := make(chan bool, 1)
	go func() {
		granted, err := e.broker.Connect(context.Background(),
			[]domain.Capability{domain.CapViewAccount, domain.CapSuggestTx}, session())
		require.NoError(t, err)
		result <- granted
	}()

	req := waitPending(t, e.permReqs)
	decide(e, req, true)

	assert.True(t, <-result)

	// Вердикт материализовался записью о правах
	grant, err := e.grants.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.True(t, grant.IsApproved())
	assert.Equal(t, "https://dapp.io", grant.ScopeOrigin())
	assert.Equal(t, "0xabc", grant.ScopeAddress())

	stored, err := e.permReqs.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalized, stored.State)

	// Повторное подключение уходит быстрым путем
	granted, err := e.broker.Connect(context.Background(),
		[]domain.Capability{domain.CapViewAccount}, session())
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestConnect_DeniedByOperator(t *testing.T) {
	e := newEnv(t)

	result := make(chan bool, 1)
	go func() {
		granted, err := e.broker.Connect(context.Background(),
			[]domain.Capability{domain.CapViewAccount}, session())
		require.NoError(t, err)
		result <- granted
	}()

	req := waitPending(t, e.permReqs)
	decide(e, req, false)

	// Отказ человека — не ошибка, а честный ответ false
	assert.False(t, <-result)

	grant, err := e.grants.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Nil(t, grant)
}

func TestConnect_SurfaceClosedFallsBackToDeny(t *testing.T) {
	e := newEnv(t)

	result := make(chan bool, 1)
	go func() {
		granted, err := e.broker.Connect(context.Background(),
			[]domain.Capability{domain.CapViewAccount}, session())
		require.NoError(t, err)
		result <- granted
	}()

	req := waitPending(t, e.permReqs)
	time.Sleep(20 * time.Millisecond)

	// Оператор закрыл страницу, не нажав кнопок
	e.surfaces.NotifyClosed(req.ID)
	assert.False(t, <-result)

	stored, err := e.permReqs.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalized, stored.State)
	require.NotNil(t, stored.Approved)
	assert.False(t, *stored.Approved)

	// Опоздавший явный вердикт не переигрывает fallback-deny
	e.bus.Publish(domain.Decision{
		RequestID: req.ID, Kind: req.Kind, Approved: true, UpdatedAt: time.Now().UTC(),
	})
	time.Sleep(20 * time.Millisecond)

	stored, err = e.permReqs.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Approved)
	assert.False(t, *stored.Approved, "late decision must be ignored")
}

func TestConnect_InvalidParams(t *testing.T) {
	e := newEnv(t)

	_, err := e.broker.Connect(context.Background(), nil, session())
	assert.True(t, domain.IsInvalidParam(err), "empty permissions: %v", err)

	_, err = e.broker.Connect(context.Background(),
		[]domain.Capability{"rootAccess"}, session())
	assert.True(t, domain.IsInvalidParam(err), "unknown permission: %v", err)

	_, err = e.broker.Connect(context.Background(),
		[]domain.Capability{domain.CapViewAccount}, Session{})
	assert.True(t, domain.IsInvalidParam(err), "missing origin: %v", err)

	// Битые параметры не оставляют следов в хранилище
	list, err := e.permReqs.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetAccountsInfo_NoPermission(t *testing.T) {
	e := newEnv(t)

	_, err := e.broker.GetAccountsInfo(context.Background(), session())
	var noPerm *domain.NoPermissionError
	require.ErrorAs(t, err, &noPerm)
	assert.Equal(t, []domain.Capability{domain.CapViewAccount}, noPerm.Missing)
}

func TestGetAccountsInfo_Success(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	infos, err := e.broker.GetAccountsInfo(context.Background(), session())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "0xabc", infos[0].Address)
	assert.Equal(t, "pub-a1", infos[0].PublicKey)
}

func TestGetPublicKey(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	key, err := e.broker.GetPublicKey(context.Background(), session())
	require.NoError(t, err)
	assert.Equal(t, "pub-a1", key)
}

func TestHasPermissions_ReturnsScopedGrants(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	grants, err := e.broker.HasPermissions(context.Background(), session())
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "seed-grant", grants[0].ID)
}

func TestSignMessage_Approved(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	type outcome struct {
		signed *signer.SignedMessage
		err    error
	}
	result := make(chan outcome, 1)
	go func() {
		signed, err := e.broker.SignMessage(context.Background(), "0xdeadbeef", session())
		result <- outcome{signed, err}
	}()

	req := waitPending(t, e.signReqs)
	decide(e, req, true)

	out := <-result
	require.NoError(t, out.err)
	assert.NotEmpty(t, out.signed.Signature)
	assert.NotEmpty(t, out.signed.SignedMessage)

	// Чувствительная нагрузка вычищена после решения
	list, err := e.signReqs.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSignMessage_Denied(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	result := make(chan error, 1)
	go func() {
		_, err := e.broker.SignMessage(context.Background(), "0xdeadbeef", session())
		result <- err
	}()

	req := waitPending(t, e.signReqs)
	decide(e, req, false)

	err := <-result
	assert.True(t, domain.IsUserRejection(err), "expected rejection, got %v", err)

	list, err := e.signReqs.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "denied sign request must be purged too")
}

func TestSignMessage_InvalidHex(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	_, err := e.broker.SignMessage(context.Background(), "not-hex", session())
	assert.True(t, domain.IsInvalidParam(err))

	list, err := e.signReqs.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransaction_ExecutedAfterApproval(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	result := make(chan json.RawMessage, 1)
	go func() {
		resp, err := e.broker.SignAndExecuteTransaction(context.Background(),
			"moveCall", json.RawMessage(`{"target":"0x2::coin::transfer"}`), nil, session())
		require.NoError(t, err)
		result <- resp
	}()

	req := waitPending(t, e.txReqs)
	decide(e, req, true)

	resp := <-result
	assert.JSONEq(t, `{"digest":"0x1","status":"success"}`, string(resp))
	assert.Equal(t, 1, e.node.callCount())

	stored, err := e.txReqs.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalized, stored.State)
	assert.JSONEq(t, `{"digest":"0x1","status":"success"}`, string(stored.Response))

	// Успешное исполнение попало в историю
	entries := e.hist.all()
	require.Len(t, entries, 1)
	assert.Equal(t, req.ID, entries[0].RequestID)
	assert.Equal(t, "moveCall", entries[0].TxType)
}

func TestTransaction_ExecutionFailureKeepsApproval(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)
	e.node.err = errors.New("insufficient gas")

	result := make(chan error, 1)
	go func() {
		_, err := e.broker.SignAndExecuteTransaction(context.Background(),
			"moveCall", json.RawMessage(`{}`), nil, session())
		result <- err
	}()

	req := waitPending(t, e.txReqs)
	decide(e, req, true)

	err := <-result
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient gas")

	// Одобрение не откатывается: ошибка исполнения — отдельный исход
	stored, getErr := e.txReqs.Get(context.Background(), req.ID)
	require.NoError(t, getErr)
	require.NotNil(t, stored.Approved)
	assert.True(t, *stored.Approved)
	assert.Contains(t, stored.ResponseError, "insufficient gas")
	assert.Empty(t, e.hist.all())
}

func TestTransaction_Denied(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	result := make(chan error, 1)
	go func() {
		_, err := e.broker.SignAndExecuteTransaction(context.Background(),
			"moveCall", json.RawMessage(`{}`), nil, session())
		result <- err
	}()

	req := waitPending(t, e.txReqs)
	decide(e, req, false)

	err := <-result
	assert.True(t, domain.IsUserRejection(err))
	assert.Equal(t, 0, e.node.callCount(), "denied transaction must never reach the node")
}

func TestTransaction_NoPermission(t *testing.T) {
	e := newEnv(t)

	_, err := e.broker.SignAndExecuteTransaction(context.Background(),
		"moveCall", json.RawMessage(`{}`), nil, session())
	assert.True(t, domain.IsNoPermission(err))

	list, listErr := e.txReqs.ListAll(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, list)
}

func TestConcurrentRaces_DoNotInterfere(t *testing.T) {
	e := newEnv(t)
	grantAll(t, e)

	// Две независимые гонки: решение одной не будит другую
	resA := make(chan error, 1)
	resB := make(chan error, 1)
	go func() {
		_, err := e.broker.SignMessage(context.Background(), "0x01", session())
		resA <- err
	}()

	reqA := waitPending(t, e.signReqs)

	go func() {
		_, err := e.broker.SignAndExecuteTransaction(context.Background(),
			"moveCall", json.RawMessage(`{}`), nil, session())
		resB <- err
	}()
	reqB := waitPending(t, e.txReqs)

	decide(e, reqB, false)
	err := <-resB
	assert.True(t, domain.IsUserRejection(err))

	select {
	case err := <-resA:
		t.Fatalf("foreign decision resolved another race: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	decide(e, reqA, true)
	require.NoError(t, <-resA)
}
