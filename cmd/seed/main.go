package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"perfume-storefront/internal/config"
	"perfume-storefront/internal/database"
	"perfume-storefront/internal/handler"
	"perfume-storefront/internal/logger"
	"perfume-storefront/internal/repo"
	"perfume-storefront/internal/seed"
)

func main() {
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed demo tokens")
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err = seed.Run(ctx, database.NewTxRunner(db), repo.NewProductRepo(db), repo.NewCustomerRepo(db), zl)
	if err != nil {
		zl.Fatal("seeding failed", zap.Error(err))
	}

	customer, address := seed.DemoCustomer()
	customerToken, err := handler.IssueToken(cfg.JWTSecret, customer.ID, false, *tokenTTL)
	if err != nil {
		zl.Fatal("failed to sign token", zap.Error(err))
	}
	adminToken, err := handler.IssueToken(cfg.JWTSecret, customer.ID, true, *tokenTTL)
	if err != nil {
		zl.Fatal("failed to sign token", zap.Error(err))
	}

	fmt.Printf("customer id:   %s\n", customer.ID)
	fmt.Printf("address id:    %s\n", address.ID)
	fmt.Printf("customer token: %s\n", customerToken)
	fmt.Printf("admin token:    %s\n", adminToken)
}
