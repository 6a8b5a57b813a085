package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

// GetAccount возвращает аккаунт по ID. Отсутствие записи — (nil, nil):
// решение «not found или ошибка» принимает вызывающий слой.
func (r *Repo) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT id, wallet_id, address, public_key, created_at
	          FROM accounts WHERE id = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.WalletID, &a.Address, &a.PublicKey, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get account: %w", err)
	}
	return a, nil
}

// ListAccounts возвращает все аккаунты кошелька в порядке создания.
func (r *Repo) ListAccounts(ctx context.Context, walletID string) ([]*domain.Account, error) {
	query := `SELECT id, wallet_id, address, public_key, created_at
	          FROM accounts WHERE wallet_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query accounts: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.Account, 0)
	for rows.Next() {
		a := &domain.Account{}
		if err := rows.Scan(&a.ID, &a.WalletID, &a.Address, &a.PublicKey, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan account: %w", err)
		}
		results = append(results, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// GetNetwork возвращает метаданные сети по ID.
func (r *Repo) GetNetwork(ctx context.Context, id string) (*domain.Network, error) {
	query := `SELECT id, name, query_rpc_url, tx_rpc_url, rpc_override, created_at, updated_at
	          FROM networks WHERE id = $1`

	n := &domain.Network{}
	var override sql.NullString // rpc_override может быть NULL

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.Name, &n.QueryRPCURL, &n.TxRPCURL, &override, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to get network: %w", err)
	}

	if override.Valid {
		n.RPCOverride = override.String
	}
	return n, nil
}

// SetNetworkRPCOverride подменяет адрес ноды для сети (или снимает подмену,
// если url пустой). Атомарно, без предварительного SELECT.
func (r *Repo) SetNetworkRPCOverride(ctx context.Context, id, url string) error {
	query := `UPDATE networks SET rpc_override = NULLIF($1, ''), updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, url, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to set rpc override: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{What: "network metadata", ID: id}
	}
	return nil
}
