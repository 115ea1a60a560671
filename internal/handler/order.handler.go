package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, logger: logger}
}

type checkoutRequest struct {
	ShippingAddressID uuid.NullUUID `json:"shipping_address_id"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	// the body is optional
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	result, err := h.orderService.Checkout(c.Request.Context(), customerID(c), req.ShippingAddressID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *OrderHandler) History(c *gin.Context) {
	orders, err := h.orderService.ListCustomerOrders(c.Request.Context(), customerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": nonNil(orders)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID, customerID(c), c.GetBool(ctxIsAdmin))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListAll(c *gin.Context) {
	orders, err := h.orderService.ListAllOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": nonNil(orders)})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, err := uuidParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown order status " + req.Status})
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
