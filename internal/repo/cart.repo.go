package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"perfume-storefront/internal/domain"
)

// CartRepo persists cart lines. Writes replace the whole cart, never single lines.
type CartRepo interface {
	ListItems(ctx context.Context, customerID uuid.UUID) ([]domain.CartItem, error)
	ReplaceItems(ctx context.Context, tx *sql.Tx, customerID uuid.UUID, items []domain.CartItem) error
	ClearCart(ctx context.Context, tx *sql.Tx, customerID uuid.UUID) error
}

type cartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepo {
	return &cartRepo{db: db}
}

func (r *cartRepo) ListItems(ctx context.Context, customerID uuid.UUID) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.product_id, p.name, ci.quantity, ci.unit_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.customer_id = $1
		ORDER BY ci.position
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *cartRepo) ReplaceItems(ctx context.Context, tx *sql.Tx, customerID uuid.UUID, items []domain.CartItem) error {
	if err := r.ClearCart(ctx, tx, customerID); err != nil {
		return err
	}
	for i, item := range items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO cart_items (customer_id, product_id, quantity, unit_price, position) VALUES ($1, $2, $3, $4, $5)",
			customerID, item.ProductID, item.Quantity, item.UnitPrice, i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *cartRepo) ClearCart(ctx context.Context, tx *sql.Tx, customerID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE customer_id = $1", customerID)
	return err
}
