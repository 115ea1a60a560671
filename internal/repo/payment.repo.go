package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"perfume-storefront/internal/domain"
)

type PaymentEventRepo interface {
	// RecordEvent stores the event once per (payment id, type).
	// It returns false when the same event was already recorded.
	RecordEvent(ctx context.Context, tx *sql.Tx, event *domain.PaymentEvent) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentEvent, error)
}

type paymentEventRepo struct {
	db *sql.DB
}

func NewPaymentEventRepo(db *sql.DB) PaymentEventRepo {
	return &paymentEventRepo{db: db}
}

func (r *paymentEventRepo) RecordEvent(ctx context.Context, tx *sql.Tx, e *domain.PaymentEvent) (bool, error) {
	query := `
		INSERT INTO payment_events (id, order_id, payment_id, type, amount, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_id, type) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query, e.ID, e.OrderID, e.PaymentID, e.Type, e.Amount, e.ReceivedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *paymentEventRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentEvent, error) {
	query := `
		SELECT id, order_id, payment_id, type, amount, received_at
		FROM payment_events
		WHERE order_id = $1
		ORDER BY received_at
	`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.PaymentID, &e.Type, &e.Amount, &e.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
