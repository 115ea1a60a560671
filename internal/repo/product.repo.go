package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"perfume-storefront/internal/domain"
)

type ProductRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, tx *sql.Tx, product *domain.Product) error
	// DecrementStock fails with domain.ErrInsufficientStock instead of going below zero.
	DecrementStock(ctx context.Context, tx *sql.Tx, id uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, tx *sql.Tx, id uuid.UUID, qty int) error
}

type productRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepo {
	return &productRepo{db: db}
}

const productColumns = `id, name, description, price, stock, milliliters, category, gender, created_at, updated_at`

func (r *productRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.Milliliters,
		&p.Category,
		&p.Gender,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) CreateProduct(ctx context.Context, tx *sql.Tx, p *domain.Product) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Milliliters, p.Category, p.Gender, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *productRepo) DecrementStock(ctx context.Context, tx *sql.Tx, id uuid.UUID, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2",
		id, qty,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, id)
}

func (r *productRepo) IncrementStock(ctx context.Context, tx *sql.Tx, id uuid.UUID, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1",
		id, qty,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return nil
}
