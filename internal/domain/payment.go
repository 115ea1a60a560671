package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentEvent is one gateway notification that was applied, or seen, for an order.
type PaymentEvent struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	PaymentID  string          `json:"payment_id"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	ReceivedAt time.Time       `json:"received_at"`
}

// CheckoutResult is returned to the customer after an order is placed.
type CheckoutResult struct {
	Order       *Order `json:"order"`
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}
