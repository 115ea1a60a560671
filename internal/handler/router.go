package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type RouterConfig struct {
	JWTSecret   string
	CORSOrigins []string
}

type Handlers struct {
	Cart    *CartHandler
	Order   *OrderHandler
	Payment *PaymentHandler
	DB      HealthChecker
}

func NewRouter(cfg RouterConfig, h Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", headerRequestID},
		ExposeHeaders:    []string{"Content-Length", headerRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		stats := h.DB.Health(c.Request.Context())
		if stats["status"] != "up" {
			c.JSON(http.StatusServiceUnavailable, stats)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	auth := Auth(cfg.JWTSecret)
	admin := RequireAdmin()

	cart := r.Group("/cart", auth)
	{
		cart.GET("", h.Cart.GetCart)
		cart.POST("/add", h.Cart.Add)
		cart.PUT("/modify", h.Cart.Modify)
		cart.DELETE("/remove/:productId", h.Cart.Remove)
		cart.POST("/undo", h.Cart.Undo)
		cart.POST("/redo", h.Cart.Redo)
		cart.GET("/history", h.Cart.History)
	}

	orders := r.Group("/orders", auth)
	{
		orders.POST("/checkout", h.Order.Checkout)
		orders.GET("/history", h.Order.History)
		orders.GET("/:id", h.Order.GetOrder)
		orders.GET("", admin, h.Order.ListAll)
		orders.PUT("/:id/status", admin, h.Order.UpdateStatus)
	}

	r.POST("/payments/webhook", h.Payment.Webhook)
	payments := r.Group("/payments", auth)
	{
		payments.GET("/status/:paymentId", h.Payment.Status)
		payments.POST("/refund/:orderId", admin, h.Payment.Refund)
		payments.GET("/events/:orderId", admin, h.Payment.Events)
	}

	return r
}
