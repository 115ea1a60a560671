package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/events"
	"perfume-storefront/internal/history"
	"perfume-storefront/internal/infrastructure/payment"
	"perfume-storefront/internal/repo"
)

type OrderService interface {
	Checkout(ctx context.Context, customerID uuid.UUID, shippingAddressID uuid.NullUUID) (*domain.CheckoutResult, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID, customerID uuid.UUID, isAdmin bool) (*domain.Order, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type CheckoutConfig struct {
	Currency       string
	StoreName      string
	FrontendURL    string
	PaymentMethod  string
	GatewayTimeout time.Duration
}

type orderService struct {
	tx         Transactor
	products   repo.ProductRepo
	customers  repo.CustomerRepo
	carts      repo.CartRepo
	orders     repo.OrderRepo
	histories  history.Store
	paymentGtw payment.PaymentGateway
	publisher  events.Publisher
	locks      *CustomerLocks
	cfg        CheckoutConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrderService(
	tx Transactor,
	products repo.ProductRepo,
	customers repo.CustomerRepo,
	carts repo.CartRepo,
	orders repo.OrderRepo,
	histories history.Store,
	paymentGtw payment.PaymentGateway,
	publisher events.Publisher,
	locks *CustomerLocks,
	cfg CheckoutConfig,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		tx:         tx,
		products:   products,
		customers:  customers,
		carts:      carts,
		orders:     orders,
		histories:  histories,
		paymentGtw: paymentGtw,
		publisher:  publisher,
		locks:      locks,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Checkout turns the cart into a pending order and opens a checkout session
// for it. Stock and cart lines stay untouched until the payment is confirmed.
func (s *orderService) Checkout(ctx context.Context, customerID uuid.UUID, shippingAddressID uuid.NullUUID) (*domain.CheckoutResult, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	customer, err := s.customers.FindById(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if customer == nil {
		return nil, domain.ErrCustomerNotFound
	}

	items, err := s.carts.ListItems(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	cart := domain.NewCart(customerID, items)
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	if err := s.validateStock(ctx, cart); err != nil {
		return nil, err
	}
	if err := s.validateAddress(ctx, customerID, shippingAddressID); err != nil {
		return nil, err
	}

	order := domain.NewOrderFromCart(cart, shippingAddressID, s.now())
	order.PaymentMethod = s.cfg.PaymentMethod

	err = s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.orders.CreateOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	session, err := s.openSession(ctx, customer, order)
	if err != nil {
		s.compensate(ctx, order, domain.PaymentFailed, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentGateway, err)
	}

	order.PaymentID = session.PaymentID
	order.CheckoutURL = session.CheckoutURL
	order.UpdatedAt = s.now()
	if err := s.attachPayment(ctx, order); err != nil {
		s.logger.Error("checkout session opened but not stored",
			zap.String("order_id", order.ID.String()),
			zap.String("payment_id", session.PaymentID),
			zap.Error(err))
		order.PaymentID = ""
		order.CheckoutURL = ""
		s.compensate(ctx, order, domain.PaymentCancelled, err)
		return nil, fmt.Errorf("attach payment: %w", err)
	}

	if err := s.histories.Delete(ctx, customerID); err != nil {
		s.logger.Warn("failed to clear cart history", zap.String("customer_id", customerID.String()), zap.Error(err))
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", order.PaymentID),
		zap.String("total", order.Total.StringFixed(2)))
	publish(ctx, s.publisher, s.logger, events.OrderCreated, order)

	return &domain.CheckoutResult{
		Order:       order,
		PaymentID:   order.PaymentID,
		CheckoutURL: order.CheckoutURL,
	}, nil
}

func (s *orderService) validateStock(ctx context.Context, cart *domain.Cart) error {
	for _, item := range cart.Items() {
		product, err := s.products.FindById(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("find product: %w", err)
		}
		if product == nil {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.Name)
		}
		if !product.HasStock(item.Quantity) {
			return fmt.Errorf("%w: %s has %d left, cart holds %d", domain.ErrInsufficientStock, product.Name, product.Stock, item.Quantity)
		}
	}
	return nil
}

func (s *orderService) validateAddress(ctx context.Context, customerID uuid.UUID, addressID uuid.NullUUID) error {
	if !addressID.Valid {
		return nil
	}
	addr, err := s.customers.FindAddress(ctx, addressID.UUID)
	if err != nil {
		return fmt.Errorf("find address: %w", err)
	}
	if addr == nil {
		return domain.ErrAddressNotFound
	}
	if addr.CustomerID != customerID {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *orderService) openSession(ctx context.Context, customer *domain.Customer, order *domain.Order) (*payment.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	frontend := strings.TrimRight(s.cfg.FrontendURL, "/")
	return s.paymentGtw.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Amount:        payment.ToCents(order.Total),
		Currency:      s.cfg.Currency,
		Description:   fmt.Sprintf("Order #%s - %s", order.ID, s.cfg.StoreName),
		CustomerEmail: customer.Email,
		CustomerName:  customer.FullName(),
		OrderID:       order.ID.String(),
		SuccessURL:    fmt.Sprintf("%s/orders/%s/success", frontend, order.ID),
		CancelURL:     fmt.Sprintf("%s/orders/%s/cancel", frontend, order.ID),
	})
}

// attachPayment stores the session on the order even when the caller has
// gone away, since the session is already live at the gateway.
func (s *orderService) attachPayment(ctx context.Context, order *domain.Order) error {
	ctx = context.WithoutCancel(ctx)
	return s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.orders.AttachPayment(ctx, tx, order)
	})
}

// compensate cancels an order whose checkout could not be completed. The
// row is kept.
func (s *orderService) compensate(ctx context.Context, order *domain.Order, paymentStatus domain.PaymentStatus, cause error) {
	ctx = context.WithoutCancel(ctx)

	order.Status = domain.OrderCancelled
	order.PaymentStatus = paymentStatus
	order.UpdatedAt = s.now()

	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.orders.UpdateOrderStatus(ctx, tx, order)
	})
	if err != nil {
		s.logger.Error("failed to cancel order after checkout error",
			zap.String("order_id", order.ID.String()),
			zap.NamedError("checkout_error", cause),
			zap.Error(err))
		return
	}

	s.logger.Warn("checkout aborted, order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.Error(cause))
	publish(ctx, s.publisher, s.logger, events.OrderCancelled, order)
}

func (s *orderService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID) ([]domain.Order, error) {
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID, customerID uuid.UUID, isAdmin bool) (*domain.Order, error) {
	order, err := s.orders.FindById(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !isAdmin && order.CustomerID != customerID {
		return nil, domain.ErrUnauthorized
	}
	return order, nil
}

func (s *orderService) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order along the fulfilment flow. Payment driven
// states are left to the payment service.
func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		o, err := s.orders.LockById(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		if !o.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: order %s cannot move from %s to %s", domain.ErrInvalidState, o.ID, o.Status, status)
		}

		o.Status = status
		o.UpdatedAt = s.now()
		if err := s.orders.UpdateOrderStatus(ctx, tx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, events.OrderStatusChanged, order)
	return order, nil
}

// publish is best effort; the order change is already committed.
func publish(ctx context.Context, p events.Publisher, logger *zap.Logger, eventType string, order *domain.Order) {
	err := p.Publish(ctx, events.OrderEvent{
		EventID:       uuid.New(),
		Type:          eventType,
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Status:        order.Status.String(),
		PaymentStatus: string(order.PaymentStatus),
		PaymentID:     order.PaymentID,
		Total:         order.Total,
		OccurredAt:    order.UpdatedAt,
	})
	if err != nil {
		logger.Warn("order event not published",
			zap.String("type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
}
