package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/events"
	"perfume-storefront/internal/history"
	"perfume-storefront/internal/infrastructure/payment"
	"perfume-storefront/internal/repo"
)

type PaymentService interface {
	HandleWebhook(ctx context.Context, event *payment.WebhookEvent) error
	// Reconcile applies a gateway outcome to the order holding paymentID.
	// It returns nil when no order has that payment id.
	Reconcile(ctx context.Context, paymentID string, action payment.Action, amount decimal.Decimal) (*domain.Order, error)
	PaymentStatus(ctx context.Context, customerID uuid.UUID, paymentID string, isAdmin bool) (*PaymentStatusResult, error)
	Refund(ctx context.Context, orderID uuid.UUID, amount *decimal.Decimal) (*RefundResult, error)
	Events(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentEvent, error)
}

type PaymentStatusResult struct {
	PaymentID     string        `json:"payment_id"`
	GatewayStatus string        `json:"gateway_status"`
	Order         *domain.Order `json:"order"`
}

type RefundResult struct {
	RefundID string          `json:"refund_id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Full     bool            `json:"full"`
	Order    *domain.Order   `json:"order"`
}

var errUnknownPayment = errors.New("no order for payment id")

type paymentService struct {
	tx             Transactor
	products       repo.ProductRepo
	carts          repo.CartRepo
	orders         repo.OrderRepo
	paymentEvents  repo.PaymentEventRepo
	histories      history.Store
	paymentGtw     payment.PaymentGateway
	publisher      events.Publisher
	locks          *CustomerLocks
	gatewayTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func NewPaymentService(
	tx Transactor,
	products repo.ProductRepo,
	carts repo.CartRepo,
	orders repo.OrderRepo,
	paymentEvents repo.PaymentEventRepo,
	histories history.Store,
	paymentGtw payment.PaymentGateway,
	publisher events.Publisher,
	locks *CustomerLocks,
	gatewayTimeout time.Duration,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		tx:             tx,
		products:       products,
		carts:          carts,
		orders:         orders,
		paymentEvents:  paymentEvents,
		histories:      histories,
		paymentGtw:     paymentGtw,
		publisher:      publisher,
		locks:          locks,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// HandleWebhook only returns an error when the event could not be applied
// and the gateway should deliver it again.
func (s *paymentService) HandleWebhook(ctx context.Context, event *payment.WebhookEvent) error {
	action := payment.ActionFor(event.Type)
	if action == payment.ActionIgnore {
		s.logger.Info("ignoring webhook event", zap.String("type", event.Type))
		return nil
	}

	_, _, err := s.apply(ctx, event.Data.ID, action, event.Type, payment.FromCents(event.Data.Amount))
	if errors.Is(err, errUnknownPayment) {
		s.logger.Warn("webhook for unknown payment id",
			zap.String("type", event.Type),
			zap.String("payment_id", event.Data.ID))
		return nil
	}
	return err
}

func (s *paymentService) Reconcile(ctx context.Context, paymentID string, action payment.Action, amount decimal.Decimal) (*domain.Order, error) {
	order, _, err := s.apply(ctx, paymentID, action, payment.EventTypeFor(action), amount)
	if errors.Is(err, errUnknownPayment) {
		return nil, nil
	}
	return order, err
}

// apply runs one payment outcome against an order in a single transaction.
// The row is locked and the outcome checked against the current payment
// status; an applicable outcome is recorded once and its stock, cart and
// status changes commit together. It reports whether anything changed.
func (s *paymentService) apply(ctx context.Context, paymentID string, action payment.Action, eventType string, amount decimal.Decimal) (*domain.Order, bool, error) {
	if action == payment.ActionIgnore {
		return nil, false, nil
	}

	found, err := s.orders.FindByPaymentId(ctx, paymentID)
	if err != nil {
		return nil, false, fmt.Errorf("find order by payment id: %w", err)
	}
	if found == nil {
		return nil, false, errUnknownPayment
	}

	unlock := s.locks.Lock(found.CustomerID)
	defer unlock()

	return s.applyLocked(ctx, paymentID, action, eventType, amount)
}

// applyLocked is apply for callers already holding the customer lock.
func (s *paymentService) applyLocked(ctx context.Context, paymentID string, action payment.Action, eventType string, amount decimal.Decimal) (*domain.Order, bool, error) {
	var (
		order   *domain.Order
		applied bool
	)
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		o, err := s.orders.LockByPaymentId(ctx, tx, paymentID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if o == nil {
			return errUnknownPayment
		}
		order = o

		status, paymentStatus, ok := nextState(o, action)
		if !ok {
			s.logger.Info("payment event does not change order",
				zap.String("order_id", o.ID.String()),
				zap.String("type", eventType),
				zap.String("payment_status", string(o.PaymentStatus)))
			return nil
		}

		fresh, err := s.paymentEvents.RecordEvent(ctx, tx, &domain.PaymentEvent{
			ID:         uuid.New(),
			OrderID:    o.ID,
			PaymentID:  paymentID,
			Type:       eventType,
			Amount:     amount,
			ReceivedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if !fresh {
			s.logger.Info("payment event already processed",
				zap.String("payment_id", paymentID),
				zap.String("type", eventType))
			return nil
		}

		switch action {
		case payment.ActionConfirm:
			for _, item := range o.Items {
				if err := s.products.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("decrement stock for %s: %w", item.Name, err)
				}
			}
			if err := s.carts.ClearCart(ctx, tx, o.CustomerID); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		case payment.ActionRefund:
			for _, item := range o.Items {
				if err := s.products.IncrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("restore stock for %s: %w", item.Name, err)
				}
			}
		}

		o.Status = status
		o.PaymentStatus = paymentStatus
		o.UpdatedAt = s.now()
		if err := s.orders.UpdateOrderStatus(ctx, tx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, errUnknownPayment) {
			s.logger.Error("failed to apply payment event",
				zap.String("payment_id", paymentID),
				zap.String("type", eventType),
				zap.Error(err))
		}
		return nil, false, err
	}

	if applied {
		s.afterApply(ctx, order, action)
	}
	return order, applied, nil
}

func (s *paymentService) afterApply(ctx context.Context, order *domain.Order, action payment.Action) {
	s.logger.Info("payment reconciled",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", order.PaymentID),
		zap.String("action", action.String()),
		zap.String("status", order.Status.String()))

	var eventType string
	switch action {
	case payment.ActionConfirm:
		if err := s.histories.Delete(ctx, order.CustomerID); err != nil {
			s.logger.Warn("failed to clear cart history", zap.String("customer_id", order.CustomerID.String()), zap.Error(err))
		}
		eventType = events.OrderPaid
	case payment.ActionFail:
		eventType = events.OrderPaymentFailed
	case payment.ActionCancel:
		eventType = events.OrderCancelled
	case payment.ActionRefund:
		eventType = events.OrderRefunded
	}
	publish(ctx, s.publisher, s.logger, eventType, order)
}

// nextState decides whether an outcome may move the order. A success may
// arrive after the order was given up on; failures and cancellations only
// touch orders still awaiting payment; refunds need a paid order.
func nextState(o *domain.Order, action payment.Action) (domain.OrderStatus, domain.PaymentStatus, bool) {
	switch action {
	case payment.ActionConfirm:
		switch o.PaymentStatus {
		case domain.PaymentPending, domain.PaymentFailed, domain.PaymentCancelled:
			return domain.OrderConfirmed, domain.PaymentPaid, true
		}
	case payment.ActionFail:
		if o.PaymentStatus == domain.PaymentPending {
			return domain.OrderCancelled, domain.PaymentFailed, true
		}
	case payment.ActionCancel:
		if o.PaymentStatus == domain.PaymentPending {
			return domain.OrderCancelled, domain.PaymentCancelled, true
		}
	case payment.ActionRefund:
		if o.PaymentStatus == domain.PaymentPaid {
			return domain.OrderRefunded, domain.PaymentRefunded, true
		}
	}
	return "", "", false
}

// PaymentStatus asks the gateway about a payment and reconciles the order
// when the gateway already knows the outcome.
func (s *paymentService) PaymentStatus(ctx context.Context, customerID uuid.UUID, paymentID string, isAdmin bool) (*PaymentStatusResult, error) {
	order, err := s.orders.FindByPaymentId(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("find order by payment id: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !isAdmin && order.CustomerID != customerID {
		return nil, domain.ErrUnauthorized
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	info, err := s.paymentGtw.GetPaymentStatus(gwCtx, paymentID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentGateway, err)
	}

	if action := payment.ActionForStatus(info.Status); action != payment.ActionIgnore {
		updated, err := s.Reconcile(ctx, paymentID, action, payment.FromCents(info.Amount))
		if err != nil {
			return nil, err
		}
		if updated != nil {
			order = updated
		}
	}

	return &PaymentStatusResult{PaymentID: paymentID, GatewayStatus: info.Status, Order: order}, nil
}

// Refund refunds a paid order at the gateway. Omitting amount, or passing
// the order total, refunds everything and restores stock right away.
// Refunds of one customer's orders run one at a time.
func (s *paymentService) Refund(ctx context.Context, orderID uuid.UUID, amount *decimal.Decimal) (*RefundResult, error) {
	order, err := s.orders.FindById(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	unlock := s.locks.Lock(order.CustomerID)
	defer unlock()

	order, err = s.orders.FindById(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.PaymentStatus != domain.PaymentPaid || order.PaymentID == "" {
		return nil, fmt.Errorf("%w: order %s is not paid", domain.ErrInvalidState, order.ID)
	}

	totalCents := payment.ToCents(order.Total)
	var cents *int64
	if amount != nil {
		c := payment.ToCents(*amount)
		if c <= 0 || c > totalCents {
			return nil, fmt.Errorf("%w: refund amount must be between 0 and %s", domain.ErrInvalidState, order.Total.StringFixed(2))
		}
		cents = &c
	}
	full := cents == nil || *cents == totalCents

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	refund, err := s.paymentGtw.CreateRefund(gwCtx, order.PaymentID, cents)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentGateway, err)
	}

	if full {
		updated, _, err := s.applyLocked(ctx, order.PaymentID, payment.ActionRefund,
			payment.EventTypeFor(payment.ActionRefund), payment.FromCents(refund.Amount))
		if err != nil && !errors.Is(err, errUnknownPayment) {
			return nil, err
		}
		if updated != nil {
			order = updated
		}
	}

	return &RefundResult{
		RefundID: refund.RefundID,
		Status:   refund.Status,
		Amount:   payment.FromCents(refund.Amount),
		Full:     full,
		Order:    order,
	}, nil
}

func (s *paymentService) Events(ctx context.Context, orderID uuid.UUID) ([]domain.PaymentEvent, error) {
	order, err := s.orders.FindById(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	list, err := s.paymentEvents.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	return list, nil
}
