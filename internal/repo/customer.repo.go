package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"perfume-storefront/internal/domain"
)

type CustomerRepo interface {
	FindById(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	FindAddress(ctx context.Context, id uuid.UUID) (*domain.Address, error)
	CreateCustomer(ctx context.Context, tx *sql.Tx, customer *domain.Customer) error
	CreateAddress(ctx context.Context, tx *sql.Tx, address *domain.Address) error
}

type customerRepo struct {
	db *sql.DB
}

func NewCustomerRepo(db *sql.DB) CustomerRepo {
	return &customerRepo{db: db}
}

func (r *customerRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, email, phone, created_at FROM customers WHERE id = $1", id,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepo) FindAddress(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	var a domain.Address
	err := r.db.QueryRowContext(ctx,
		"SELECT id, customer_id, line1, line2, city, province, postal_code FROM addresses WHERE id = $1", id,
	).Scan(&a.ID, &a.CustomerID, &a.Line1, &a.Line2, &a.City, &a.Province, &a.PostalCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *customerRepo) CreateCustomer(ctx context.Context, tx *sql.Tx, c *domain.Customer) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO customers (id, first_name, last_name, email, phone, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.CreatedAt,
	)
	return err
}

func (r *customerRepo) CreateAddress(ctx context.Context, tx *sql.Tx, a *domain.Address) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO addresses (id, customer_id, line1, line2, city, province, postal_code) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		a.ID, a.CustomerID, a.Line1, a.Line2, a.City, a.Province, a.PostalCode,
	)
	return err
}
