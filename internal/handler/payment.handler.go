package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"perfume-storefront/internal/infrastructure/payment"
	"perfume-storefront/internal/service"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	paymentService service.PaymentService
	webhookSecret  string
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService service.PaymentService, webhookSecret string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, webhookSecret: webhookSecret, logger: logger}
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// Webhook acknowledges every well formed, signed delivery. It only answers
// 500 when the event could not be applied and should be sent again.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, err)
		return
	}

	if !payment.VerifySignature(body, c.GetHeader(payment.SignatureHeader), h.webhookSecret) {
		h.logger.Warn("webhook signature rejected", zap.String("request_id", c.GetString(ctxRequestID)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), event); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("type", event.Type),
			zap.String("payment_id", event.Data.ID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"received": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) Status(c *gin.Context) {
	result, err := h.paymentService.PaymentStatus(c.Request.Context(), customerID(c), c.Param("paymentId"), c.GetBool(ctxIsAdmin))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	orderID, err := uuidParam(c, "orderId")
	if err != nil {
		badRequest(c, err)
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	result, err := h.paymentService.Refund(c.Request.Context(), orderID, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Events(c *gin.Context) {
	orderID, err := uuidParam(c, "orderId")
	if err != nil {
		badRequest(c, err)
		return
	}

	list, err := h.paymentService.Events(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": nonNil(list)})
}
