// Package seed loads the demo perfume catalog and a demo customer.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/repo"
)

var namespace = uuid.MustParse("6f1c1b0e-4a52-4f0e-9d0a-6b1e7c2f5a10")

// StableID derives the same id for the same name on every run so seeding
// can be repeated.
func StableID(name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(name))
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

func Catalog() []domain.Product {
	type entry struct {
		name, description, price, category, gender string
		stock, ml                                  int
	}
	entries := []entry{
		{"Chanel No. 5", "Classic, elegant perfume with floral notes", "85.00", "EauDeParfum", "Female", 20, 100},
		{"Dior Sauvage", "Fresh, woody fragrance for men", "75.00", "EauDeToilette", "Male", 15, 100},
		{"Versace Eros", "Oriental perfume with fruity notes", "65.00", "EauDeParfum", "Male", 25, 100},
		{"Carolina Herrera Good Girl", "Sweet, seductive fragrance", "80.00", "Parfum", "Female", 18, 80},
		{"Calvin Klein CK One", "Fresh unisex perfume", "45.00", "EauFraiche", "Unisex", 30, 50},
	}

	now := time.Now().UTC()
	products := make([]domain.Product, len(entries))
	for i, e := range entries {
		products[i] = domain.Product{
			ID:          StableID("product:" + e.name),
			Name:        e.name,
			Description: e.description,
			Price:       decimal.RequireFromString(e.price),
			Stock:       e.stock,
			Milliliters: e.ml,
			Category:    e.category,
			Gender:      e.gender,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return products
}

func DemoCustomer() (domain.Customer, domain.Address) {
	c := domain.Customer{
		ID:        StableID("customer:demo@jyjessence.com"),
		FirstName: "Demo",
		LastName:  "Customer",
		Email:     "demo@jyjessence.com",
		Phone:     "+57 300 000 0000",
		CreatedAt: time.Now().UTC(),
	}
	a := domain.Address{
		ID:         StableID("address:demo@jyjessence.com"),
		CustomerID: c.ID,
		Line1:      "Carrera 7 # 71-21",
		City:       "Bogotá",
		Province:   "Cundinamarca",
		PostalCode: "110231",
	}
	return c, a
}

// Run inserts whatever part of the catalog and demo customer is missing.
func Run(ctx context.Context, tx txRunner, products repo.ProductRepo, customers repo.CustomerRepo, logger *zap.Logger) error {
	for _, p := range Catalog() {
		existing, err := products.FindById(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("find product %s: %w", p.Name, err)
		}
		if existing != nil {
			logger.Info("product already seeded", zap.String("name", p.Name))
			continue
		}
		err = tx.WithinTx(ctx, func(tx *sql.Tx) error {
			return products.CreateProduct(ctx, tx, &p)
		})
		if err != nil {
			return fmt.Errorf("create product %s: %w", p.Name, err)
		}
		logger.Info("product created", zap.String("name", p.Name), zap.String("id", p.ID.String()))
	}

	customer, address := DemoCustomer()
	existing, err := customers.FindById(ctx, customer.ID)
	if err != nil {
		return fmt.Errorf("find demo customer: %w", err)
	}
	if existing != nil {
		return nil
	}
	err = tx.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := customers.CreateCustomer(ctx, tx, &customer); err != nil {
			return err
		}
		return customers.CreateAddress(ctx, tx, &address)
	})
	if err != nil {
		return fmt.Errorf("create demo customer: %w", err)
	}
	logger.Info("demo customer created", zap.String("id", customer.ID.String()), zap.String("email", customer.Email))
	return nil
}
