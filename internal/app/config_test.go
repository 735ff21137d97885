package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr:        "0.0.0.0:8080",
		DatabaseURL: "postgres://localhost/kart",
		JWTSecret:   "secret",
		Checkout:    CheckoutConfig{TaxRate: "0.02", Currency: "UAH", TxTimeout: 15 * time.Second},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Config)
		wantErr string
	}{
		"valid":        {mutate: func(*Config) {}},
		"zero tax":     {mutate: func(c *Config) { c.Checkout.TaxRate = "0" }},
		"no database":  {mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		"no secret":    {mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT secret is required"},
		"bad tax":      {mutate: func(c *Config) { c.Checkout.TaxRate = "two percent" }, wantErr: "parse tax rate"},
		"negative tax": {mutate: func(c *Config) { c.Checkout.TaxRate = "-0.1" }, wantErr: "must be in [0, 1)"},
		"whole tax":    {mutate: func(c *Config) { c.Checkout.TaxRate = "1" }, wantErr: "must be in [0, 1)"},
		"no currency":  {mutate: func(c *Config) { c.Checkout.Currency = "" }, wantErr: "currency is required"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestIntegrationsConfig_Retry(t *testing.T) {
	r := IntegrationsConfig{Timeout: time.Second, RetryInitial: 10 * time.Millisecond, RetryMaxElapsed: time.Minute}.Retry()
	assert.Equal(t, time.Second, r.Timeout)
	assert.Equal(t, 10*time.Millisecond, r.Initial)
	assert.Equal(t, time.Minute, r.MaxElapsed)
}
