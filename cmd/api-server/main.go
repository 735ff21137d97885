// Command api-server runs the storefront checkout API.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/storefront-checkout/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		lg.Info("Configuration loaded",
			zap.String("addr", cfg.Addr),
			zap.String("currency", cfg.Checkout.Currency),
			zap.String("tax_rate", cfg.Checkout.TaxRate),
		)
		return appkg.Run(ctx, lg, m, cfg)
	})
}
