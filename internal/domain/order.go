package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// orderTransitions lists the moves an operator may make by hand.
// Payment driven moves (confirm, fail, refund) go through the payment service.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderRefunded:
		return st, true
	}
	return "", false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type Order struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	Total             decimal.Decimal `json:"total"`
	ShippingAddressID uuid.NullUUID   `json:"shipping_address_id"`
	PaymentID         string          `json:"payment_id,omitempty"`
	CheckoutURL       string          `json:"checkout_url,omitempty"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	Items             []OrderItem     `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// NewOrderFromCart builds a pending order with prices captured from the cart lines.
func NewOrderFromCart(cart *Cart, shippingAddressID uuid.NullUUID, now time.Time) *Order {
	items := cart.Items()
	order := &Order{
		ID:                uuid.New(),
		CustomerID:        cart.CustomerID,
		Status:            OrderPending,
		PaymentStatus:     PaymentPending,
		Total:             cart.Total(),
		ShippingAddressID: shippingAddressID,
		Items:             make([]OrderItem, len(items)),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for i, item := range items {
		order.Items[i] = OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return order
}
