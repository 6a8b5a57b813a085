package domain

import "time"

// GrantSource — откуда пришел запрос (текущая схема записи).
type GrantSource struct {
	Origin  string `json:"origin"`
	Name    string `json:"name"`
	Favicon string `json:"favicon"`
}

// GrantTarget — на что выдан доступ (текущая схема записи).
type GrantTarget struct {
	Address string `json:"address"`
}

// PermissionGrant — персистентная запись о выданных dApp правах.
//
// Схема пережила миграцию: старые записи хранили origin/address плоскими
// полями, новые — внутри source/target. Обе формы должны читаться вечно,
// пока не принято явное решение о миграции, поэтому доступ к скоупу идет
// только через ScopeOrigin()/ScopeAddress().
type PermissionGrant struct {
	ID          string       `json:"id"`
	Permissions []Capability `json:"permissions"`

	Source *GrantSource `json:"source,omitempty"`
	Target *GrantTarget `json:"target,omitempty"`

	// Legacy-поля старой схемы. Не использовать напрямую.
	LegacyOrigin  string `json:"origin,omitempty"`
	LegacyAddress string `json:"address,omitempty"`

	NetworkID string `json:"networkId"`
	WalletID  string `json:"walletId"`
	AccountID string `json:"accountId"`

	// Тристейт: nil — решение еще не принято.
	Approved *bool `json:"approved"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// ScopeOrigin нормализует обе схемы записи к одному значению.
func (g *PermissionGrant) ScopeOrigin() string {
	if g.Source != nil && g.Source.Origin != "" {
		return g.Source.Origin
	}
	return g.LegacyOrigin
}

// ScopeAddress нормализует обе схемы записи к одному значению.
func (g *PermissionGrant) ScopeAddress() string {
	if g.Target != nil && g.Target.Address != "" {
		return g.Target.Address
	}
	return g.LegacyAddress
}

// IsApproved: только явное true. Отклоненные и нерешенные записи
// никогда не участвуют в проверке прав.
func (g *PermissionGrant) IsApproved() bool {
	return g.Approved != nil && *g.Approved
}

// MatchesScope проверяет попадание записи в запрошенный скоуп.
// Пустой origin в запросе означает "любой источник" (выборка для админки).
func (g *PermissionGrant) MatchesScope(scope Scope) bool {
	if scope.Origin != "" && g.ScopeOrigin() != scope.Origin {
		return false
	}
	return g.ScopeAddress() == scope.Address && g.NetworkID == scope.NetworkID
}

// Scope — тройка, по которой изолируются выданные права.
type Scope struct {
	Origin    string `json:"origin"`
	Address   string `json:"address"`
	NetworkID string `json:"networkId"`
}
