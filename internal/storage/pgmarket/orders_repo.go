package pgmarket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/MarketBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// UpsertOrders сохраняет страницу заказов маркетплейса. Повторный импорт
// того же заказа обновляет state и payload, но не считается новым.
// Возвращает заказы, которых раньше в базе не было.
func (s *Storage) UpsertOrders(ctx context.Context, account string, orders []models.Order) ([]models.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var fresh []models.Order
	for _, o := range orders {
		payload, err := json.Marshal(o)
		if err != nil {
			return nil, errors.Wrap(err, "marshal order")
		}

		// xmax = 0 верно только для строк, вставленных в этой транзакции,
		// так отличаем insert от update без второго запроса.
		var inserted bool
		err = tx.QueryRow(ctx, `
INSERT INTO marketplace_orders (account, order_id, state, payload, imported_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (account, order_id)
DO UPDATE SET state = EXCLUDED.state, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`, account, o.OrderID, o.State, payload, now).Scan(&inserted)
		if err != nil {
			return nil, errors.Wrap(err, "upsert order")
		}
		if inserted {
			fresh = append(fresh, o)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return fresh, nil
}

func (s *Storage) MarkOrderAccepted(ctx context.Context, account, orderID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE marketplace_orders
SET accepted = TRUE, accepted_at = now(), updated_at = now()
WHERE account = $1 AND order_id = $2
`, account, orderID)
	return errors.Wrap(err, "mark order accepted")
}

// ListOrders возвращает импортированные заказы аккаунта, свежие первыми.
// state пустой — без фильтра по статусу.
func (s *Storage) ListOrders(ctx context.Context, account, state string, limit, offset int) ([]*models.ImportedOrder, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
SELECT id, account, payload, accepted, accepted_at, imported_at, updated_at
FROM marketplace_orders
WHERE account = $1 AND ($2 = '' OR state = $2)
ORDER BY imported_at DESC, id DESC
LIMIT $3 OFFSET $4
`, account, state, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	var out []*models.ImportedOrder
	for rows.Next() {
		var (
			ord     models.ImportedOrder
			payload []byte
		)
		if err := rows.Scan(&ord.ID, &ord.Account, &payload, &ord.Accepted, &ord.AcceptedAt, &ord.ImportedAt, &ord.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		if err := json.Unmarshal(payload, &ord.Order); err != nil {
			return nil, errors.Wrap(err, "decode order payload")
		}
		out = append(out, &ord)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
