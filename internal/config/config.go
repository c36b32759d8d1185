package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"wanderlust/internal/pricing"
)

type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DBDSN        string `env:"DB_DSN" envDefault:"wanderlust.db"`
	LogFile      string `env:"LOG_FILE"`
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	TemplatesDir string `env:"TEMPLATES_DIR" envDefault:"./web/templates"`

	Stripe  StripeConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Pricing PricingConfig
	Breaker BreakerConfig

	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
}

type StripeConfig struct {
	SecretKey string `env:"STRIPE_SECRET_KEY"`
	Currency  string `env:"STRIPE_CURRENCY" envDefault:"usd"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	CartTTL  time.Duration `env:"CART_TTL" envDefault:"720h"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"order-confirmations"`
}

type PricingConfig struct {
	FlatShipping          string `env:"SHIPPING_FLAT_FEE" envDefault:"10"`
	FreeShippingThreshold string `env:"FREE_SHIPPING_THRESHOLD" envDefault:"100"`
	VATRate               string `env:"VAT_RATE" envDefault:"0.10"`
}

type BreakerConfig struct {
	MaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	OpenTimeout time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] .env ignored: %v", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Rules(); err != nil {
		return Config{}, err
	}
	log.Printf("[config] PORT=%s DB_DSN=%s BASE_URL=%s REDIS=%t KAFKA=%t STRIPE=%t",
		cfg.Port, cfg.DBDSN, cfg.BaseURL, cfg.Redis.Addr != "", len(cfg.Kafka.Brokers) > 0, cfg.Stripe.SecretKey != "")
	return cfg, nil
}

// Rules builds the pricing rules from the configured amounts.
func (c Config) Rules() (pricing.Rules, error) {
	flat, err := decimal.NewFromString(c.Pricing.FlatShipping)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("SHIPPING_FLAT_FEE: %w", err)
	}
	threshold, err := decimal.NewFromString(c.Pricing.FreeShippingThreshold)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("FREE_SHIPPING_THRESHOLD: %w", err)
	}
	vat, err := decimal.NewFromString(c.Pricing.VATRate)
	if err != nil {
		return pricing.Rules{}, fmt.Errorf("VAT_RATE: %w", err)
	}
	currency := c.Stripe.Currency
	if currency == "" {
		currency = pricing.DefaultRules.Currency
	}
	return pricing.Rules{FlatShipping: flat, FreeShippingThreshold: threshold, VATRate: vat, Currency: currency}, nil
}
