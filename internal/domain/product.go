package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Milliliters int
	Category    string
	Gender      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasStock reports whether qty units can be taken from the current stock.
func (p *Product) HasStock(qty int) bool {
	return qty <= p.Stock
}
