package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type mockPayment struct {
	status string
	amount int64
	meta   map[string]any
}

// MockGateway is an in-process stand-in for the provider, used when
// USE_MOCK_PAYMENT is on and in tests. Statuses only change through SetStatus
// and CreateRefund.
type MockGateway struct {
	mu       sync.RWMutex
	payments map[string]*mockPayment
	failNext error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{payments: make(map[string]*mockPayment)}
}

// FailNext makes the next gateway call return err.
func (g *MockGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

func (g *MockGateway) takeFailure() error {
	err := g.failNext
	g.failNext = nil
	return err
}

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(); err != nil {
		return nil, err
	}

	paymentID := "mock_pay_" + uuid.NewString()
	g.payments[paymentID] = &mockPayment{
		status: StatusPending,
		amount: req.Amount,
		meta:   map[string]any{"order_id": req.OrderID},
	}

	sep := "?"
	if strings.Contains(req.SuccessURL, "?") {
		sep = "&"
	}
	return &CheckoutSession{
		PaymentID:   paymentID,
		CheckoutURL: fmt.Sprintf("%s%smock=true&payment_id=%s", req.SuccessURL, sep, paymentID),
		Status:      StatusPending,
	}, nil
}

func (g *MockGateway) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(); err != nil {
		return nil, err
	}

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return &PaymentInfo{ID: paymentID, Status: p.status, Amount: p.amount, Metadata: p.meta}, nil
}

func (g *MockGateway) CreateRefund(ctx context.Context, paymentID string, amount *int64) (*Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure(); err != nil {
		return nil, err
	}

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, errors.New("payment not found")
	}
	if p.status != StatusSucceeded {
		return nil, fmt.Errorf("payment %s is %s, cannot refund", paymentID, p.status)
	}

	refunded := p.amount
	if amount != nil {
		refunded = *amount
	}
	if refunded >= p.amount {
		p.status = StatusRefunded
	}
	return &Refund{RefundID: "mock_ref_" + uuid.NewString(), Status: StatusSucceeded, Amount: refunded}, nil
}

// SetStatus simulates the customer completing (or abandoning) the checkout.
func (g *MockGateway) SetStatus(paymentID, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return errors.New("payment not found")
	}
	p.status = status
	return nil
}
