package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/integration"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret    string `usage:"HMAC secret for bearer tokens (KART_JWT_SECRET)" flag:"jwt-secret"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Checkout     CheckoutConfig
	Integrations IntegrationsConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// CheckoutConfig controls order pricing and the placement transaction.
type CheckoutConfig struct {
	TaxRate   string        `default:"0.02" usage:"Tax rate applied to the discounted subtotal"`
	Currency  string        `default:"UAH"  usage:"Currency of charges and order totals"`
	TxTimeout time.Duration `default:"15s"  usage:"Deadline of the order placement transaction" flag:"tx-timeout"`
}

// IntegrationsConfig bounds calls to the payment and carrier providers.
type IntegrationsConfig struct {
	Timeout         time.Duration `default:"5s"    usage:"Timeout of a single provider call"`
	RetryInitial    time.Duration `default:"200ms" usage:"First retry interval" flag:"retry-initial"`
	RetryMaxElapsed time.Duration `default:"10s"   usage:"Give up retrying after this long" flag:"retry-max-elapsed"`
}

// Retry converts the settings into the provider retry policy.
func (c IntegrationsConfig) Retry() integration.Retry {
	return integration.Retry{
		Timeout:    c.Timeout,
		Initial:    c.RetryInitial,
		MaxElapsed: c.RetryMaxElapsed,
	}
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required: set KART_JWT_SECRET")
	}
	rate, err := c.taxRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.Errorf("tax rate %s must be in [0, 1)", rate)
	}
	if c.Checkout.Currency == "" {
		return errors.New("checkout currency is required")
	}
	return nil
}

func (c *Config) taxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Checkout.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse tax rate %q", c.Checkout.TaxRate)
	}
	return rate, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
