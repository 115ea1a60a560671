package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the in-memory view of a customer's persisted cart lines.
// It holds at most one line per product.
type Cart struct {
	CustomerID uuid.UUID
	items      []CartItem
}

func NewCart(customerID uuid.UUID, items []CartItem) *Cart {
	return &Cart{CustomerID: customerID, items: copyItems(items)}
}

// Add merges qty into the existing line for the product or appends a new line.
// The unit price of an existing line is kept.
func (c *Cart) Add(item CartItem) {
	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i].Quantity += item.Quantity
			return
		}
	}
	c.items = append(c.items, item)
}

func (c *Cart) Modify(productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	i := c.indexOf(productID)
	if i < 0 {
		return ErrItemNotInCart
	}
	c.items[i].Quantity = qty
	return nil
}

func (c *Cart) Remove(productID uuid.UUID) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ErrItemNotInCart
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return nil
}

// QuantityOf returns the quantity currently held for the product, 0 if absent.
func (c *Cart) QuantityOf(productID uuid.UUID) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

func (c *Cart) Contains(productID uuid.UUID) bool {
	return c.indexOf(productID) >= 0
}

func (c *Cart) Items() []CartItem {
	return copyItems(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) Snapshot(at time.Time) CartMemento {
	return NewCartMemento(c.items, at)
}

func (c *Cart) Restore(m CartMemento) {
	c.items = m.Items()
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func copyItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

// CartMemento is an immutable snapshot of a cart's lines.
type CartMemento struct {
	items   []CartItem
	takenAt time.Time
}

func NewCartMemento(items []CartItem, at time.Time) CartMemento {
	return CartMemento{items: copyItems(items), takenAt: at}
}

// Items returns a copy; callers may mutate it freely.
func (m CartMemento) Items() []CartItem {
	return copyItems(m.items)
}

func (m CartMemento) TakenAt() time.Time {
	return m.takenAt
}

// CartView is what the cart endpoints return.
type CartView struct {
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func (c *Cart) View() CartView {
	return CartView{Items: c.Items(), Total: c.Total(), ItemCount: len(c.items)}
}
