package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfume-storefront/internal/service"
)

type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{cartService: cartService, logger: logger}
}

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	view, err := h.cartService.GetCart(c.Request.Context(), customerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) Add(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ProductID == uuid.Nil {
		badRequest(c, errBadUUID)
		return
	}

	view, err := h.cartService.Add(c.Request.Context(), customerID(c), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) Modify(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ProductID == uuid.Nil {
		badRequest(c, errBadUUID)
		return
	}

	view, err := h.cartService.Modify(c.Request.Context(), customerID(c), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) Remove(c *gin.Context) {
	productID, err := uuidParam(c, "productId")
	if err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.cartService.Remove(c.Request.Context(), customerID(c), productID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) Undo(c *gin.Context) {
	view, err := h.cartService.Undo(c.Request.Context(), customerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) Redo(c *gin.Context) {
	view, err := h.cartService.Redo(c.Request.Context(), customerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) History(c *gin.Context) {
	info, err := h.cartService.HistoryInfo(c.Request.Context(), customerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
