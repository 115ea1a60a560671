package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway statuses as reported by the payment provider.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
	StatusRefunded  = "refunded"
)

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentInfo, error)
	// CreateRefund refunds the whole payment when amount is nil.
	CreateRefund(ctx context.Context, paymentID string, amount *int64) (*Refund, error)
}

// CheckoutRequest amounts are in minor units (cents).
type CheckoutRequest struct {
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
	CustomerName  string
	OrderID       string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	PaymentID   string
	CheckoutURL string
	Status      string
}

type PaymentInfo struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
	Metadata map[string]any
}

type Refund struct {
	RefundID string
	Status   string
	Amount   int64
}

func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
