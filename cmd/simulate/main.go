package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"perfume-storefront/internal/config"
	"perfume-storefront/internal/database"
	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/events"
	"perfume-storefront/internal/history"
	"perfume-storefront/internal/infrastructure/payment"
	"perfume-storefront/internal/logger"
	"perfume-storefront/internal/repo"
	"perfume-storefront/internal/seed"
	"perfume-storefront/internal/service"
	"perfume-storefront/internal/worker"
)

// simulate runs checkouts against the mock gateway. Some payments get their
// webhook, some succeed at the gateway without one, some are abandoned.
// The reconciliation worker is then left to repair the lost webhooks.
func main() {
	orders := flag.Int("orders", 20, "number of checkouts to simulate")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := database.RunMigrations(cfg.DB.DSN()); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}
	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	tx := database.NewTxRunner(db)
	productRepo := repo.NewProductRepo(db)
	customerRepo := repo.NewCustomerRepo(db)
	cartRepo := repo.NewCartRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	paymentEventRepo := repo.NewPaymentEventRepo(db)

	if err := seed.Run(ctx, tx, productRepo, customerRepo, zl); err != nil {
		zl.Fatal("seeding failed", zap.Error(err))
	}

	gateway := payment.NewMockGateway()
	histories := history.NewMemoryStore(time.Hour)
	locks := service.NewCustomerLocks()
	nop := events.NopPublisher{}

	cartService := service.NewCartService(tx, productRepo, cartRepo, histories, locks, cfg.HistoryCapacity, zl)
	orderService := service.NewOrderService(tx, productRepo, customerRepo, cartRepo, orderRepo, histories, gateway, nop, locks,
		service.CheckoutConfig{
			Currency:       cfg.Payment.Currency,
			StoreName:      cfg.Payment.StoreName,
			FrontendURL:    cfg.Payment.FrontendURL,
			PaymentMethod:  "mock",
			GatewayTimeout: cfg.Payment.Timeout,
		}, zl)
	paymentService := service.NewPaymentService(tx, productRepo, cartRepo, orderRepo, paymentEventRepo, histories, gateway, nop, locks, cfg.Payment.Timeout, zl)

	catalog := seed.Catalog()
	var placed []uuid.UUID

	fmt.Printf("--- SIMULATING %d CHECKOUTS ---\n", *orders)
	for i := 0; i < *orders; i++ {
		customerID, err := newCustomer(ctx, tx, customerRepo, i)
		if err != nil {
			zl.Fatal("failed to create customer", zap.Error(err))
		}

		product := catalog[rand.IntN(len(catalog))]
		if _, err := cartService.Add(ctx, customerID, product.ID, 1+rand.IntN(2)); err != nil {
			fmt.Printf("[%d] add %s FAILED: %v\n", i+1, product.Name, err)
			continue
		}

		result, err := orderService.Checkout(ctx, customerID, uuid.NullUUID{})
		if err != nil {
			fmt.Printf("[%d] checkout FAILED: %v\n", i+1, err)
			continue
		}
		placed = append(placed, result.Order.ID)

		outcome := rand.Float64()
		switch {
		case outcome < 0.6:
			_ = gateway.SetStatus(result.PaymentID, payment.StatusSucceeded)
			err = paymentService.HandleWebhook(ctx, &payment.WebhookEvent{
				Type: payment.EventSucceeded,
				Data: payment.WebhookData{ID: result.PaymentID, Amount: payment.ToCents(result.Order.Total)},
			})
			fmt.Printf("[%d] %s paid, webhook delivered (err=%v)\n", i+1, result.Order.ID, err)
		case outcome < 0.85:
			_ = gateway.SetStatus(result.PaymentID, payment.StatusSucceeded)
			fmt.Printf("[%d] %s paid, webhook LOST\n", i+1, result.Order.ID)
		default:
			_ = gateway.SetStatus(result.PaymentID, payment.StatusCanceled)
			fmt.Printf("[%d] %s abandoned at the gateway, webhook LOST\n", i+1, result.Order.ID)
		}
	}

	fmt.Println("--- RUNNING RECONCILIATION ---")
	workerCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	w := worker.NewReconciliationWorker(orderRepo, gateway, paymentService, worker.Options{
		Interval:   500 * time.Millisecond,
		StaleAfter: 0,
		BatchSize:  *orders,
	}, zl)
	w.Run(workerCtx)

	fmt.Println("--- FINAL STATE ---")
	for _, id := range placed {
		o, err := orderRepo.FindById(ctx, id)
		if err != nil || o == nil {
			fmt.Printf("%s: lookup failed: %v\n", id, err)
			continue
		}
		fmt.Printf("%s: status=%s payment=%s\n", o.ID, o.Status, o.PaymentStatus)
	}
}

func newCustomer(ctx context.Context, tx *database.TxRunner, customers repo.CustomerRepo, n int) (uuid.UUID, error) {
	c := domain.Customer{
		ID:        uuid.New(),
		FirstName: "Sim",
		LastName:  fmt.Sprintf("Shopper %d", n+1),
		Email:     fmt.Sprintf("sim-%s@example.com", uuid.NewString()[:8]),
		CreatedAt: time.Now().UTC(),
	}
	err := tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return customers.CreateCustomer(ctx, tx, &c)
	})
	return c.ID, err
}
