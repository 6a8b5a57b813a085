package broker

/*
Файл broker.go реализует ядро шлюза — Authorization Broker.

Брокер стоит между недоверенным dApp и человеком-оператором. Для каждого
запроса способности он:
  - быстрый путь: проверяет уже выданные права через Evaluator и отвечает
    сразу, не создавая запись и не открывая окно;
  - медленный путь: создает PendingRequest, открывает окно одобрения и
    устраивает гонку «явное решение против закрытия окна»;
  - строго один победитель: проигравший источник отписывается, поздний
    вердикт по финализированному id — no-op;
  - закрытие окна без решения — консервативный отказ (fail-safe to deny).

Таймаута нет намеренно: живость ограничена вниманием человека, окно
без решения держит запрос в Created сколько угодно.
*/

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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

// Подсказки маршрута для окна одобрения: какой экран рисовать консоли.
const (
	RouteConnect    = "connect"
	RouteTxApproval = "tx-approval"
	RouteSignMsg    = "sign-msg"
)

// Session — контекст недоверенной стороны, приходит с каждым запросом.
type Session struct {
	Origin  string `json:"origin"`
	Name    string `json:"name"`
	Favicon string `json:"favicon"`
}

type Broker struct {
	eval     *permission.Evaluator
	grants   permission.Store
	requests map[domain.RequestKind]request.Store
	bus      *decision.Bus
	surfaces *surface.Controller
	wallet   *wallet.Service
	exec     executor.Provider
	signer   signer.Signer
	history  history.Recorder

	logger  *zap.Logger
	metrics *Metrics
}

func New(
	eval *permission.Evaluator,
	grants permission.Store,
	permReqs, txReqs, signReqs request.Store,
	bus *decision.Bus,
	surfaces *surface.Controller,
	walletSvc *wallet.Service,
	exec executor.Provider,
	sig signer.Signer,
	hist history.Recorder,
	logger *zap.Logger,
	metrics *Metrics,
) *Broker {
	return &Broker{
		eval:   eval,
		grants: grants,
		requests: map[domain.RequestKind]request.Store{
			domain.KindPermission:  permReqs,
			domain.KindTransaction: txReqs,
			domain.KindSignMessage: signReqs,
		},
		bus:      bus,
		surfaces: surfaces,
		wallet:   walletSvc,
		exec:     exec,
		signer:   sig,
		history:  hist,
		logger:   logger.Named("broker"),
		metrics:  metrics,
	}
}

// CallbackApproval — вход для решений оператора: консоль шлет вердикт,
// мост доставляет его сюда, шина будит нужную гонку.
func (b *Broker) CallbackApproval(d domain.Decision) {
	b.bus.Publish(d)
}

// Connect — флоу подключения dApp. Единственная операция, которая сама
// выдает права. Отказ человека — не ошибка, а честный ответ false.
func (b *Broker) Connect(ctx context.Context, caps []domain.Capability, sess Session) (bool, error) {
	b.metrics.RequestsTotal.WithLabelValues("connect", sess.Origin).Inc()

	if err := validateSession(sess); err != nil {
		return false, b.invalidParam(err)
	}
	if len(caps) == 0 {
		return false, b.invalidParam(errors.New("permissions are required"))
	}
	known := domain.NewCapabilitySet(domain.AllCapabilities...)
	for _, c := range caps {
		if !known.Has(c) {
			return false, b.invalidParam(fmt.Errorf("unknown permission %q", c))
		}
	}

	sc, err := b.resolveScope(ctx, sess.Origin)
	if err != nil {
		return false, err
	}

	// Быстрый путь: всё уже выдано — ни записи, ни окна
	check, err := b.eval.CheckPermissions(ctx, caps, sc.scope)
	if err != nil {
		return false, err
	}
	if check.Granted {
		b.logger.Debug("connect satisfied by existing grants",
			zap.String("origin", sess.Origin))
		return true, nil
	}

	store := b.requests[domain.KindPermission]
	req, err := store.Create(ctx, request.CreateParams{
		Permissions: caps,
		Origin:      sess.Origin,
		Name:        sess.Name,
		Favicon:     sess.Favicon,
		Address:     sc.account.Address,
		NetworkID:   sc.appCtx.NetworkID,
		WalletID:    sc.appCtx.WalletID,
		AccountID:   sc.appCtx.AccountID,
	})
	if err != nil {
		return false, err
	}

	final, approved, err := b.race(ctx, store, req, RouteConnect)
	if err != nil {
		return false, err
	}
	if !approved {
		return false, nil
	}

	// Вердикт «да» материализуется записью о правах
	if err := b.grants.Put(ctx, domain.GrantFromRequest(final)); err != nil {
		return false, fmt.Errorf("failed to persist grant: %w", err)
	}
	b.logger.Info("dapp connected",
		zap.String("origin", sess.Origin),
		zap.String("address", sc.account.Address))
	return true, nil
}

// HasPermissions возвращает выданные записи текущего скоупа.
// Прав не требует: dApp вправе узнать, что ему уже разрешено.
func (b *Broker) HasPermissions(ctx context.Context, sess Session) ([]*domain.PermissionGrant, error) {
	b.metrics.RequestsTotal.WithLabelValues("has-permissions", sess.Origin).Inc()

	if err := validateSession(sess); err != nil {
		return nil, b.invalidParam(err)
	}
	sc, err := b.resolveScope(ctx, sess.Origin)
	if err != nil {
		return nil, err
	}
	return b.eval.GrantsFor(ctx, sc.scope)
}

// GetAccountsInfo возвращает адреса и публичные ключи активного кошелька.
func (b *Broker) GetAccountsInfo(ctx context.Context, sess Session) ([]domain.AccountInfo, error) {
	b.metrics.RequestsTotal.WithLabelValues("get-accounts-info", sess.Origin).Inc()

	sc, err := b.requireCaps(ctx, "get-accounts-info", sess, domain.CapViewAccount)
	if err != nil {
		return nil, err
	}

	accounts, err := b.wallet.Accounts(ctx, sc.appCtx.WalletID)
	if err != nil {
		return nil, err
	}
	infos := make([]domain.AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, domain.AccountInfo{Address: a.Address, PublicKey: a.PublicKey})
	}
	return infos, nil
}

// GetAccounts — устаревшая операция, только адреса.
// Deprecated: dApp-ам следует звать GetAccountsInfo.
func (b *Broker) GetAccounts(ctx context.Context, sess Session) ([]string, error) {
	b.metrics.RequestsTotal.WithLabelValues("get-accounts", sess.Origin).Inc()

	sc, err := b.requireCaps(ctx, "get-accounts", sess, domain.CapViewAccount)
	if err != nil {
		return nil, err
	}

	accounts, err := b.wallet.Accounts(ctx, sc.appCtx.WalletID)
	if err != nil {
		return nil, err
	}
	addrs := make([]string, 0, len(accounts))
	for _, a := range accounts {
		addrs = append(addrs, a.Address)
	}
	return addrs, nil
}

// GetPublicKey возвращает публичный ключ активного аккаунта.
func (b *Broker) GetPublicKey(ctx context.Context, sess Session) (string, error) {
	b.metrics.RequestsTotal.WithLabelValues("get-public-key", sess.Origin).Inc()

	sc, err := b.requireCaps(ctx, "get-public-key", sess, domain.CapViewAccount)
	if err != nil {
		return "", err
	}
	return sc.account.PublicKey, nil
}

// SignMessage — интерактивная подпись произвольного сообщения.
// data — hex-строка подписываемых байт. После принятия решения запись
// удаляется из хранилища: чувствительная нагрузка не должна залеживаться.
func (b *Broker) SignMessage(ctx context.Context, dataHex string, sess Session) (*signer.SignedMessage, error) {
	b.metrics.RequestsTotal.WithLabelValues("sign-message", sess.Origin).Inc()

	if err := validateSession(sess); err != nil {
		return nil, b.invalidParam(err)
	}
	message, err := hex.DecodeString(strings.TrimPrefix(dataHex, "0x"))
	if err != nil || len(message) == 0 {
		return nil, b.invalidParam(errors.New("data must be a non-empty hex string"))
	}

	sc, err := b.requireCaps(ctx, "sign-message", sess,
		domain.CapViewAccount, domain.CapSuggestTx)
	if err != nil {
		return nil, err
	}

	store := b.requests[domain.KindSignMessage]
	req, err := store.Create(ctx, request.CreateParams{
		Data:      dataHex,
		Origin:    sess.Origin,
		Name:      sess.Name,
		Favicon:   sess.Favicon,
		Address:   sc.account.Address,
		NetworkID: sc.appCtx.NetworkID,
		WalletID:  sc.appCtx.WalletID,
		AccountID: sc.appCtx.AccountID,
	})
	if err != nil {
		return nil, err
	}

	final, approved, err := b.race(ctx, store, req, RouteSignMsg)
	if err != nil {
		return nil, err
	}

	// Решение принято — запись с байтами сообщения больше не нужна
	if remErr := store.Remove(ctx, final.ID); remErr != nil {
		b.logger.Warn("failed to purge sign request", zap.Error(remErr),
			zap.String("request_id", final.ID))
	}

	if !approved {
		b.metrics.ErrorTotal.WithLabelValues("rejection").Inc()
		return nil, &domain.UserRejectionError{}
	}

	signed, err := b.signer.SignMessage(ctx, sc.appCtx.WalletID, sc.appCtx.AccountID, message)
	if err != nil {
		return nil, fmt.Errorf("signing service failed: %w", err)
	}
	return signed, nil
}

// SignAndExecuteTransaction — интерактивное одобрение и отправка транзакции.
func (b *Broker) SignAndExecuteTransaction(ctx context.Context, txType string, txData, metadata json.RawMessage, sess Session) (json.RawMessage, error) {
	b.metrics.RequestsTotal.WithLabelValues("sign-and-execute-transaction", sess.Origin).Inc()
	return b.promptAndExecuteTx(ctx, txType, txData, metadata, sess)
}

// RequestTransaction — устаревший транзакционный флоу. Семантика та же,
// что у SignAndExecuteTransaction, отличается только форма вызова.
// Deprecated: оставлено для старых dApp-ов.
func (b *Broker) RequestTransaction(ctx context.Context, txData json.RawMessage, sess Session) (json.RawMessage, error) {
	b.metrics.RequestsTotal.WithLabelValues("request-transaction", sess.Origin).Inc()
	return b.promptAndExecuteTx(ctx, "raw", txData, nil, sess)
}

// promptAndExecuteTx — общий путь обоих транзакционных флоу:
// валидация -> права -> запись -> гонка -> исполнение.
func (b *Broker) promptAndExecuteTx(ctx context.Context, txType string, txData, metadata json.RawMessage, sess Session) (json.RawMessage, error) {
	if err := validateSession(sess); err != nil {
		return nil, b.invalidParam(err)
	}
	if txType == "" {
		return nil, b.invalidParam(errors.New("transaction type is required"))
	}
	if len(txData) == 0 {
		return nil, b.invalidParam(errors.New("transaction data is required"))
	}

	sc, err := b.requireCaps(ctx, "sign-and-execute-transaction", sess,
		domain.CapViewAccount, domain.CapSuggestTx)
	if err != nil {
		return nil, err
	}

	store := b.requests[domain.KindTransaction]
	req, err := store.Create(ctx, request.CreateParams{
		TxType:    txType,
		TxData:    txData,
		Metadata:  metadata,
		Origin:    sess.Origin,
		Name:      sess.Name,
		Favicon:   sess.Favicon,
		Address:   sc.account.Address,
		NetworkID: sc.appCtx.NetworkID,
		WalletID:  sc.appCtx.WalletID,
		AccountID: sc.appCtx.AccountID,
	})
	if err != nil {
		return nil, err
	}

	final, approved, err := b.race(ctx, store, req, RouteTxApproval)
	if err != nil {
		return nil, err
	}
	if !approved {
		b.metrics.ErrorTotal.WithLabelValues("rejection").Inc()
		return nil, &domain.UserRejectionError{}
	}

	return b.executeApproved(ctx, store, final)
}

// executeApproved отправляет одобренную транзакцию во внешний движок.
// Ошибка исполнения — отдельный терминальный исход: одобрение не
// откатывается, ошибка записывается на запрос и уходит вызывающему.
func (b *Broker) executeApproved(ctx context.Context, store request.Store, req *domain.PendingRequest) (json.RawMessage, error) {
	network, err := b.wallet.Network(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}

	resp, execErr := b.exec.Execute(ctx, executor.ExecuteRequest{
		Network:   network,
		WalletID:  req.WalletID,
		AccountID: req.AccountID,
		TxType:    req.TxType,
		TxData:    req.TxData,
	})

	now := time.Now().UTC()
	req.UpdatedAt = &now
	if execErr != nil {
		req.ResponseError = execErr.Error()
	} else {
		req.Response = resp
	}
	if err := store.Update(ctx, req); err != nil {
		b.logger.Error("failed to record execution outcome", zap.Error(err),
			zap.String("request_id", req.ID))
	}

	if execErr != nil {
		b.metrics.ErrorTotal.WithLabelValues("execution").Inc()
		b.logger.Warn("approved transaction failed on execution",
			zap.String("request_id", req.ID), zap.Error(execErr))
		return nil, fmt.Errorf("transaction execution failed: %w", execErr)
	}

	if b.history != nil {
		b.history.Record(history.Entry{
			ID:        uuid.New().String(),
			RequestID: req.ID,
			WalletID:  req.WalletID,
			AccountID: req.AccountID,
			Address:   req.Address,
			NetworkID: req.NetworkID,
			Origin:    req.Origin,
			TxType:    req.TxType,
			Response:  resp,
			Timestamp: now,
		})
	}

	b.logger.Info("transaction executed",
		zap.String("request_id", req.ID),
		zap.String("origin", req.Origin))
	return resp, nil
}

// race — одна гонка одобрения: ровно один победитель.
// Возвращает финализированную запись и вердикт.
func (b *Broker) race(ctx context.Context, store request.Store, req *domain.PendingRequest, route string) (*domain.PendingRequest, bool, error) {
	start := time.Now()

	surf := b.surfaces.Open(route, req)
	decCh, cancelSub := b.bus.Subscribe(req.Kind, req.ID)
	// Отписка обязательна на всех путях выхода: проигравшие подписки
	// не должны накапливаться
	defer cancelSub()
	closeCh := surf.Show()

	b.metrics.PendingSurfaces.Inc()
	defer b.metrics.PendingSurfaces.Dec()

	b.logger.Info("awaiting human decision",
		zap.String("request_id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.String("origin", req.Origin),
		zap.String("surface_url", surf.URL()))

	var approved bool
	var decidedAt time.Time
	outcome := "dismissed"

	select {
	case d, ok := <-decCh:
		if !ok {
			// Шина закрыта (остановка шлюза) — fail-safe к отказу
			decidedAt = time.Now().UTC()
		} else {
			approved = d.Approved
			decidedAt = d.UpdatedAt
			if decidedAt.IsZero() {
				decidedAt = time.Now().UTC()
			}
			if approved {
				outcome = "approved"
			} else {
				outcome = "denied"
			}
		}
	case <-closeCh:
		// Окно закрыто без решения: консервативный отказ.
		// Явный вердикт, пришедший тактом позже, уже опоздал.
		decidedAt = time.Now().UTC()
	case <-ctx.Done():
		surf.Close()
		return nil, false, ctx.Err()
	}

	// Закрываем окно безусловно — Close() идемпотентен
	surf.Close()

	// Финализация идемпотентна: повторная запись по финализированному
	// id — no-op, действует первый вердикт.
	stored, err := store.Get(ctx, req.ID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		stored = req
	}
	if err := stored.Finalize(approved, decidedAt); err != nil {
		if errors.Is(err, domain.ErrAlreadyFinalized) {
			b.logger.Debug("late verdict ignored",
				zap.String("request_id", req.ID))
			return stored, stored.Approved != nil && *stored.Approved, nil
		}
		return nil, false, err
	}
	if err := store.Update(ctx, stored); err != nil {
		return nil, false, err
	}

	b.metrics.VerdictsTotal.WithLabelValues(string(req.Kind), outcome).Inc()
	b.metrics.ApprovalDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
	b.logger.Info("verdict persisted",
		zap.String("request_id", req.ID),
		zap.String("outcome", outcome))
	return stored, approved, nil
}

// scopeCtx — разрешенный скоуп текущего запроса: активный контекст,
// аккаунт и тройка изоляции прав.
type scopeCtx struct {
	appCtx  *domain.AppContext
	account *domain.Account
	scope   domain.Scope
}

func (b *Broker) resolveScope(ctx context.Context, origin string) (*scopeCtx, error) {
	appCtx, err := b.wallet.ActiveContext(ctx)
	if err != nil {
		return nil, err
	}
	account, err := b.wallet.ActiveAccount(ctx, appCtx.AccountID)
	if err != nil {
		return nil, err
	}
	return &scopeCtx{
		appCtx:  appCtx,
		account: account,
		scope: domain.Scope{
			Origin:    origin,
			Address:   account.Address,
			NetworkID: appCtx.NetworkID,
		},
	}, nil
}

// requireCaps — быстрая проверка прав для операций, которые не запускают
// интерактивный запрос: нехватка — сразу NoPermissionError с missing.
func (b *Broker) requireCaps(ctx context.Context, op string, sess Session, caps ...domain.Capability) (*scopeCtx, error) {
	if err := validateSession(sess); err != nil {
		return nil, b.invalidParam(err)
	}
	sc, err := b.resolveScope(ctx, sess.Origin)
	if err != nil {
		return nil, err
	}
	check, err := b.eval.CheckPermissions(ctx, caps, sc.scope)
	if err != nil {
		return nil, err
	}
	if !check.Granted {
		b.metrics.ErrorTotal.WithLabelValues("no_permission").Inc()
		return nil, &domain.NoPermissionError{Op: op, Missing: check.Missing}
	}
	return sc, nil
}

func (b *Broker) invalidParam(err error) error {
	b.metrics.ErrorTotal.WithLabelValues("invalid_param").Inc()
	return domain.NewInvalidParamError(err.Error())
}

func validateSession(sess Session) error {
	if sess.Origin == "" {
		return errors.New("origin is required")
	}
	return nil
}
