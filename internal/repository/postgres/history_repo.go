package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/wallet-gate/internal/history"
)

// WriteBatch сохраняет пачку записей истории за одну вставку.
func (r *Repo) WriteBatch(ctx context.Context, entries []history.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	// Количество колонок в таблице tx_history
	numFields := 10
	placeholderStr := ""
	vals := make([]interface{}, 0, len(entries)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range entries {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10)

		vals = append(vals,
			e.ID, e.RequestID, e.WalletID, e.AccountID, e.Address,
			e.NetworkID, e.Origin, e.TxType, []byte(e.Response), e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO tx_history (id, request_id, wallet_id, account_id, address, network_id, origin, tx_type, response, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

// ListHistory возвращает историю транзакций аккаунта, свежие записи первыми.
func (r *Repo) ListHistory(ctx context.Context, accountID string, limit int) ([]history.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, request_id, wallet_id, account_id, address, network_id, origin, tx_type, response, timestamp
	          FROM tx_history WHERE account_id = $1 ORDER BY timestamp DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query tx history: %w", err)
	}
	defer rows.Close()

	results := make([]history.Entry, 0)
	for rows.Next() {
		var e history.Entry
		var resp []byte
		if err := rows.Scan(&e.ID, &e.RequestID, &e.WalletID, &e.AccountID, &e.Address,
			&e.NetworkID, &e.Origin, &e.TxType, &resp, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan tx history: %w", err)
		}
		e.Response = resp
		results = append(results, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
