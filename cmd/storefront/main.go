package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"perfume-storefront/internal/config"
	"perfume-storefront/internal/database"
	"perfume-storefront/internal/events"
	"perfume-storefront/internal/handler"
	"perfume-storefront/internal/history"
	"perfume-storefront/internal/infrastructure/payment"
	"perfume-storefront/internal/logger"
	"perfume-storefront/internal/repo"
	"perfume-storefront/internal/service"
	"perfume-storefront/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DB.Migrate {
		if err := database.RunMigrations(cfg.DB.DSN()); err != nil {
			zl.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	dbService := database.New(db, cfg.DB.Database, zl)
	defer dbService.Close()

	histories, closeHistories := newHistoryStore(ctx, cfg, zl)
	defer closeHistories()

	gateway, paymentMethod := newGateway(cfg)
	publisher := newPublisher(cfg, zl)
	defer publisher.Close()

	productRepo := repo.NewProductRepo(db)
	customerRepo := repo.NewCustomerRepo(db)
	cartRepo := repo.NewCartRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	paymentEventRepo := repo.NewPaymentEventRepo(db)
	tx := database.NewTxRunner(db)
	locks := service.NewCustomerLocks()

	cartService := service.NewCartService(tx, productRepo, cartRepo, histories, locks, cfg.HistoryCapacity, zl)
	orderService := service.NewOrderService(tx, productRepo, customerRepo, cartRepo, orderRepo, histories, gateway, publisher, locks,
		service.CheckoutConfig{
			Currency:       cfg.Payment.Currency,
			StoreName:      cfg.Payment.StoreName,
			FrontendURL:    cfg.Payment.FrontendURL,
			PaymentMethod:  paymentMethod,
			GatewayTimeout: cfg.Payment.Timeout,
		}, zl)
	paymentService := service.NewPaymentService(tx, productRepo, cartRepo, orderRepo, paymentEventRepo, histories, gateway, publisher, locks, cfg.Payment.Timeout, zl)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	}, handler.Handlers{
		Cart:    handler.NewCartHandler(cartService, zl),
		Order:   handler.NewOrderHandler(orderService, zl),
		Payment: handler.NewPaymentHandler(paymentService, cfg.Payment.WebhookKey, zl),
		DB:      dbService,
	}, zl)

	reconciler := worker.NewReconciliationWorker(orderRepo, gateway, paymentService, worker.Options{
		Interval:     cfg.ReconcileInterval,
		StaleAfter:   cfg.ReconcileAfter,
		AbandonAfter: cfg.AbandonAfter,
		BatchSize:    cfg.ReconcileBatch,
	}, zl)
	go reconciler.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("starting HTTP server",
			zap.String("port", cfg.Port),
			zap.String("payment_method", paymentMethod),
			zap.Bool("redis_history", cfg.RedisAddr != ""),
			zap.Bool("kafka_events", len(cfg.KafkaBrokers) > 0))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	zl.Info("server stopped")
}

func newHistoryStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (history.Store, func()) {
	if cfg.RedisAddr == "" {
		store := history.NewMemoryStore(cfg.HistoryTTL)
		go store.RunJanitor(ctx, time.Minute, zl)
		return store, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zl.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return history.NewRedisStore(client, cfg.HistoryTTL), func() { _ = client.Close() }
}

func newGateway(cfg *config.Config) (payment.PaymentGateway, string) {
	if cfg.Payment.UseMock {
		return payment.NewMockGateway(), "mock"
	}
	return payment.NewOnvoClient(cfg.Payment.APIURL, cfg.Payment.SecretKey, cfg.Payment.Timeout), "onvo"
}

func newPublisher(cfg *config.Config, zl *zap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, zl)
}
