package pgmarket

import (
	"context"
	"time"

	"github.com/BearBump/MarketBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  id, account, order_id, tracking_number, carrier,
  status, push_fail_count, last_error,
  next_attempt_at, pushed_at, created_at, updated_at`

// CreateShipment идемпотентна по (account, order_id, tracking_number):
// повторная заявка возвращает уже существующую строку как есть.
func (s *Storage) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	if in.Account == "" {
		return nil, errors.New("account is required")
	}
	if in.OrderID == "" {
		return nil, errors.New("orderId is required")
	}
	if in.TrackingNumber == "" {
		return nil, errors.New("trackingNumber is required")
	}

	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO shipments (account, order_id, tracking_number, carrier, status, next_attempt_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (account, order_id, tracking_number)
DO UPDATE SET updated_at = shipments.updated_at
RETURNING `+shipmentColumns, in.Account, in.OrderID, in.TrackingNumber, string(in.Carrier), models.ShipmentStatusPending, now, now)

	sh, err := scanShipment(row)
	return sh, errors.Wrap(err, "insert shipment")
}

// ClaimDueShipments выбирает пачку отгрузок, готовых к отправке, и сдвигает
// им next_attempt_at на lease вперёд, чтобы параллельный воркер их не взял.
// SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE status <> $1 AND next_attempt_at <= $2
ORDER BY next_attempt_at
LIMIT $3
FOR UPDATE SKIP LOCKED
`, models.ShipmentStatusPushed, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due shipments")
	}

	var picked []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due shipment")
		}
		picked = append(picked, sh)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, sh := range picked {
		if _, err := tx.Exec(ctx, `UPDATE shipments SET next_attempt_at = $2, updated_at = now() WHERE id = $1`, sh.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease shipment")
		}
		sh.NextAttemptAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

func (s *Storage) MarkShipmentPushed(ctx context.Context, id uint64) error {
	_, err := s.db.Exec(ctx, `
UPDATE shipments
SET status = $2, pushed_at = now(), last_error = NULL, updated_at = now()
WHERE id = $1
`, id, models.ShipmentStatusPushed)
	return errors.Wrap(err, "mark shipment pushed")
}

func (s *Storage) MarkShipmentFailed(ctx context.Context, id uint64, pushErr string, nextAttemptAt time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE shipments
SET status = $2, push_fail_count = push_fail_count + 1, last_error = $3, next_attempt_at = $4, updated_at = now()
WHERE id = $1
`, id, models.ShipmentStatusFailed, pushErr, nextAttemptAt.UTC())
	return errors.Wrap(err, "mark shipment failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*models.Shipment, error) {
	var (
		sh      models.Shipment
		carrier string
	)
	if err := row.Scan(
		&sh.ID, &sh.Account, &sh.OrderID, &sh.TrackingNumber, &carrier,
		&sh.Status, &sh.PushFailCount, &sh.LastError,
		&sh.NextAttemptAt, &sh.PushedAt, &sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sh.Carrier = models.ShippingCarrier(carrier)
	return &sh, nil
}
