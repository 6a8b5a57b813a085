package permission

import (
	"context"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

// CheckResult — итог быстрой проверки прав.
type CheckResult struct {
	Granted bool                `json:"granted"`
	Missing []domain.Capability `json:"missingPerms"`
}

// Evaluator — чистая функция над снапшотом хранилища. Ничего не мутирует,
// безопасно зовется из любого числа одновременных запросов.
type Evaluator struct {
	store Store
}

func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store}
}

// GrantsFor выбирает одобренные записи, попадающие в скоуп.
// Учитываются обе схемы записи (legacy-поля читаются через аксессоры).
func (e *Evaluator) GrantsFor(ctx context.Context, scope domain.Scope) ([]*domain.PermissionGrant, error) {
	all, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*domain.PermissionGrant, 0)
	for _, g := range all {
		if g.IsApproved() && g.MatchesScope(scope) {
			matched = append(matched, g)
		}
	}
	return matched, nil
}

// CheckPermissions считает объединение способностей по всем подходящим
// записям и сравнивает с запрошенным набором.
func (e *Evaluator) CheckPermissions(ctx context.Context, requested []domain.Capability, scope domain.Scope) (*CheckResult, error) {
	grants, err := e.GrantsFor(ctx, scope)
	if err != nil {
		return nil, err
	}

	granted := domain.NewCapabilitySet()
	for _, g := range grants {
		for _, c := range g.Permissions {
			granted.Add(c)
		}
	}

	missing := granted.Missing(requested)
	return &CheckResult{
		Granted: len(missing) == 0,
		Missing: missing,
	}, nil
}
