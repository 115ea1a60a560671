package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"3002"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DB DB

	RedisAddr       string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	HistoryCapacity int           `envconfig:"CART_HISTORY_CAPACITY" default:"10"`
	HistoryTTL      time.Duration `envconfig:"CART_HISTORY_TTL" default:"24h"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"order-events"`

	JWTSecret   string   `envconfig:"JWT_SECRET" default:""`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	Payment Payment

	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	ReconcileAfter    time.Duration `envconfig:"RECONCILE_AFTER" default:"15m"`
	AbandonAfter      time.Duration `envconfig:"RECONCILE_ABANDON_AFTER" default:"48h"`
	ReconcileBatch    int           `envconfig:"RECONCILE_BATCH" default:"50"`
}

type DB struct {
	Host     string `envconfig:"BLUEPRINT_DB_HOST" default:"localhost"`
	Port     string `envconfig:"BLUEPRINT_DB_PORT" default:"5432"`
	Username string `envconfig:"BLUEPRINT_DB_USERNAME" default:"postgres"`
	Password string `envconfig:"BLUEPRINT_DB_PASSWORD" default:""`
	Database string `envconfig:"BLUEPRINT_DB_DATABASE" default:"storefront"`
	Schema   string `envconfig:"BLUEPRINT_DB_SCHEMA" default:"public"`
	Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
}

func (d DB) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.Schema,
	)
}

type Payment struct {
	APIURL      string        `envconfig:"ONVO_API_URL" default:"https://sandbox.onvopay.com"`
	SecretKey   string        `envconfig:"ONVO_SECRET_KEY" default:""`
	UseMock     bool          `envconfig:"USE_MOCK_PAYMENT" default:"false"`
	WebhookKey  string        `envconfig:"WEBHOOK_SECRET" default:""`
	Currency    string        `envconfig:"PAYMENT_CURRENCY" default:"COP"`
	Timeout     time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	FrontendURL string        `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
	StoreName   string        `envconfig:"STORE_NAME" default:"JyJ Essence"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if !c.Payment.UseMock && c.Payment.SecretKey == "" {
		return errors.New("ONVO_SECRET_KEY is required unless USE_MOCK_PAYMENT is true")
	}
	// Without a secret only the signature header's presence can be checked.
	if !c.Payment.UseMock && c.Payment.WebhookKey == "" {
		return errors.New("WEBHOOK_SECRET is required unless USE_MOCK_PAYMENT is true")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("CART_HISTORY_CAPACITY must be positive, got %d", c.HistoryCapacity)
	}
	return nil
}
