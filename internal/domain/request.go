package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// RequestKind — тип запроса на одобрение. Значения совпадают с тем, что
// шлет approval surface в своем callback.
type RequestKind string

const (
	KindPermission  RequestKind = "PERMISSION"
	KindTransaction RequestKind = "TRANSACTION"
	KindSignMessage RequestKind = "SIGN_MSG"
)

// Статусы State Machine запроса: CREATED -> FINALIZED, терминальное состояние.
type RequestState string

const (
	StateCreated   RequestState = "CREATED"
	StateFinalized RequestState = "FINALIZED"
)

var ErrAlreadyFinalized = errors.New("request already finalized")

// PendingRequest — единая запись для всех трех видов запросов.
// Какие поля заполнены, определяется Kind.
type PendingRequest struct {
	ID    string       `json:"id"`
	Kind  RequestKind  `json:"kind"`
	State RequestState `json:"state"`

	// PERMISSION: запрошенный набор способностей
	Permissions []Capability `json:"permissions,omitempty"`

	// TRANSACTION: полезная нагрузка и метаданные вызова
	TxType   string          `json:"txType,omitempty"`
	TxData   json.RawMessage `json:"txData,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// SIGN_MSG: hex-представление подписываемого сообщения
	Data string `json:"data,omitempty"`

	// Контекст скоупа
	Origin    string `json:"origin"`
	Name      string `json:"name"`
	Favicon   string `json:"favicon"`
	Address   string `json:"address"`
	NetworkID string `json:"networkId"`
	WalletID  string `json:"walletId"`
	AccountID string `json:"accountId"`

	// Вердикт. nil, пока человек не решил и окно не закрыто.
	Approved *bool `json:"approved"`

	// TRANSACTION: результат либо ошибка исполнения после одобрения
	Response      json.RawMessage `json:"response,omitempty"`
	ResponseError string          `json:"responseError,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// Finalize переводит запрос в терминальное состояние.
// Повторный вызов — ошибка ErrAlreadyFinalized: ровно один вердикт на id.
func (r *PendingRequest) Finalize(approved bool, at time.Time) error {
	if r.State == StateFinalized {
		return ErrAlreadyFinalized
	}
	r.State = StateFinalized
	r.Approved = &approved
	r.UpdatedAt = &at
	return nil
}

// GrantFromRequest собирает PermissionGrant из одобренного запроса на
// подключение. Всегда пишем новую схему (source/target).
func GrantFromRequest(r *PendingRequest) *PermissionGrant {
	approved := true
	return &PermissionGrant{
		ID:          r.ID,
		Permissions: append([]Capability(nil), r.Permissions...),
		Source: &GrantSource{
			Origin:  r.Origin,
			Name:    r.Name,
			Favicon: r.Favicon,
		},
		Target:    &GrantTarget{Address: r.Address},
		NetworkID: r.NetworkID,
		WalletID:  r.WalletID,
		AccountID: r.AccountID,
		Approved:  &approved,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
