package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"perfume-storefront/internal/domain"
)

type OrderRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByPaymentId(ctx context.Context, paymentID string) (*domain.Order, error)
	// LockByPaymentId loads the order with a row lock held until tx ends.
	LockByPaymentId(ctx context.Context, tx *sql.Tx, paymentID string) (*domain.Order, error)
	LockById(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	UpdateOrderStatus(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	AttachPayment(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, customer_id, status, payment_status, total, shipping_address_id,
	payment_id, checkout_url, payment_method, created_at, updated_at`

func scanOrder(row scanner) (*domain.Order, error) {
	var order domain.Order
	var paymentID sql.NullString
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.Status,
		&order.PaymentStatus,
		&order.Total,
		&order.ShippingAddressID,
		&paymentID,
		&order.CheckoutURL,
		&order.PaymentMethod,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.PaymentID = paymentID.String
	return &order, nil
}

func (r *orderRepo) findOne(ctx context.Context, q querier, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	if order.Items, err = r.loadItems(ctx, q, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, r.db, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

func (r *orderRepo) FindByPaymentId(ctx context.Context, paymentID string) (*domain.Order, error) {
	return r.findOne(ctx, r.db, "SELECT "+orderColumns+" FROM orders WHERE payment_id = $1", paymentID)
}

func (r *orderRepo) LockByPaymentId(ctx context.Context, tx *sql.Tx, paymentID string) (*domain.Order, error) {
	return r.findOne(ctx, tx, "SELECT "+orderColumns+" FROM orders WHERE payment_id = $1 FOR UPDATE", paymentID)
}

func (r *orderRepo) LockById(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, tx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

func (r *orderRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Order, error) {
	return r.list(ctx, "SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
}

func (r *orderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
}

func (r *orderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if orders[i].Items, err = r.loadItems(ctx, r.db, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepo) loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT product_id, name, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY position",
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, payment_status, total, shipping_address_id, checkout_url, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID, order.CustomerID, order.Status, order.PaymentStatus, order.Total, order.ShippingAddressID,
		order.CheckoutURL, order.PaymentMethod, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for i, item := range order.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, name, quantity, unit_price, position) VALUES ($1, $2, $3, $4, $5, $6)",
			order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepo) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, payment_status = $2, updated_at = $3 WHERE id = $4",
		order.Status, order.PaymentStatus, order.UpdatedAt, order.ID,
	)
	return err
}

func (r *orderRepo) AttachPayment(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET payment_id = $1, checkout_url = $2, payment_method = $3, updated_at = $4 WHERE id = $5",
		order.PaymentID, order.CheckoutURL, order.PaymentMethod, order.UpdatedAt, order.ID,
	)
	return err
}

// FindStuckOrders returns orders whose payment is still pending at the gateway
// and that have not been touched for olderThan.
func (r *orderRepo) FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payment_status = $1 AND payment_id IS NOT NULL AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`,
		domain.PaymentPending, time.Now().Add(-olderThan), limit,
	)
}
