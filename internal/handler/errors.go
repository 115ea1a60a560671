package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"perfume-storefront/internal/domain"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrPaymentGateway, http.StatusBadGateway},
	{domain.ErrProductNotFound, http.StatusNotFound},
	{domain.ErrItemNotInCart, http.StatusNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound},
	{domain.ErrAddressNotFound, http.StatusNotFound},
	{domain.ErrCustomerNotFound, http.StatusNotFound},
	{domain.ErrInsufficientStock, http.StatusConflict},
	{domain.ErrNothingToUndo, http.StatusConflict},
	{domain.ErrNothingToRedo, http.StatusConflict},
	{domain.ErrInvalidState, http.StatusConflict},
	{domain.ErrEmptyCart, http.StatusUnprocessableEntity},
	{domain.ErrInvalidQuantity, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusForbidden},
}

// respondError writes business errors with their message and hides
// everything else behind a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.Error("upstream failure", zap.String("request_id", c.GetString(ctxRequestID)), zap.Error(err))
				c.JSON(m.status, gin.H{"error": m.err.Error(), "request_id": c.GetString(ctxRequestID)})
				return
			}
			c.JSON(m.status, gin.H{"error": err.Error()})
			return
		}
	}

	logger.Error("request failed", zap.String("request_id", c.GetString(ctxRequestID)), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      "internal server error",
		"request_id": c.GetString(ctxRequestID),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
}
