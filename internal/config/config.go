package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`

	Database  Database  `envPrefix:"DATABASE_"`
	Stripe    Stripe    `envPrefix:"STRIPE_"`
	Store     Store     `envPrefix:"STORE_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`

	// DefaultItem scopes entitlements when a request does not name a content item.
	DefaultItem     string        `env:"DEFAULT_ITEM" envDefault:"default"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	PaymentsEnabled bool          `env:"PAYMENTS_ENABLED" envDefault:"true"`
	SessionSecret   string        `env:"SESSION_SECRET"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	PriceID       string `env:"PRICE_ID"`
	// APIURL overrides the Stripe API endpoint (stripe-mock, tests).
	APIURL string `env:"API_URL"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	URL    string `env:"URL" envDefault:"paywall.db"`
}

type Store struct {
	Backend        string        `env:"BACKEND" envDefault:"redis"`
	RedisURL       string        `env:"REDIS_URL"`
	EntitlementTTL time.Duration `env:"ENTITLEMENT_TTL" envDefault:"720h"`
}

type RateLimit struct {
	CheckoutPerMinute float64 `env:"CHECKOUT_PER_MINUTE" envDefault:"20"`
	CheckoutBurst     int     `env:"CHECKOUT_BURST" envDefault:"5"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Store.EntitlementTTL <= 0 {
		return fmt.Errorf("STORE_ENTITLEMENT_TTL must be positive, got %s", c.Store.EntitlementTTL)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	if strings.TrimSpace(c.DefaultItem) == "" {
		return fmt.Errorf("DEFAULT_ITEM must not be empty")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.HTTP.Host + ":" + c.HTTP.Port
}

// MissingPayments lists the names of payment settings that are not configured.
// Values are never included.
func (c *Config) MissingPayments() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("STRIPE_SECRET_KEY", c.Stripe.SecretKey)
	check("STRIPE_WEBHOOK_SECRET", c.Stripe.WebhookSecret)
	check("STRIPE_PRICE_ID", c.Stripe.PriceID)
	check("BASE_URL", c.BaseURL)
	return missing
}
