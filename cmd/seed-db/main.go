package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

var products = []product.Product{
	{
		SKU:      "SONY-XM5",
		Name:     "Sony WH-1000XM5 wireless headphones",
		Price:    decimal.NewFromInt(12999),
		Stock:    45,
		Active:   true,
		ImageURL: "https://placehold.co/600x400/1a1a20/ffffff?text=Sony+XM5",
	},
	{
		SKU:      "MBP-14-M3",
		Name:     "MacBook Pro 14 M3 Pro",
		Price:    decimal.NewFromInt(89999),
		Stock:    12,
		Active:   true,
		ImageURL: "https://placehold.co/600x400/1a1a20/ffffff?text=MacBook+Pro",
	},
	{
		SKU:      "COL-OMNI",
		Name:     "Columbia Omni-Heat men's jacket",
		Price:    decimal.NewFromInt(4599),
		Stock:    67,
		Active:   true,
		ImageURL: "https://placehold.co/600x400/1a1a20/ffffff?text=Columbia",
	},
}

func promotions(now time.Time) []promotion.Promotion {
	ends := now.AddDate(0, 3, 0)
	return []promotion.Promotion{
		{
			Code:        "WELCOME10",
			Description: "10% off for new customers",
			Type:        promotion.TypePercentage,
			Value:       decimal.NewFromInt(10),
			MinSubtotal: decimal.NewFromInt(1000),
			StartsAt:    now,
			EndsAt:      ends,
			Active:      true,
		},
		{
			Code:        "SAVE500",
			Description: "500 off orders from 5000",
			Type:        promotion.TypeFixed,
			Value:       decimal.NewFromInt(500),
			MinSubtotal: decimal.NewFromInt(5000),
			StartsAt:    now,
			EndsAt:      ends,
			Active:      true,
		},
		{
			Code:        "BLACKFRIDAY",
			Description: "30% off orders from 5000",
			Type:        promotion.TypePercentage,
			Value:       decimal.NewFromInt(30),
			MinSubtotal: decimal.NewFromInt(5000),
			MaxUses:     1000,
			StartsAt:    now,
			EndsAt:      ends,
			Active:      true,
		},
		{
			Code:        "FREESHIP",
			Description: "Shipping covered up to 200",
			Type:        promotion.TypeShipping,
			Value:       decimal.NewFromInt(200),
			StartsAt:    now,
			EndsAt:      ends,
			Active:      true,
		},
	}
}

var customers = []auth.Identity{
	{Email: "customer@example.com", Name: "Demo Customer", Role: auth.RoleCustomer},
	{Email: "admin@example.com", Name: "Back Office", Role: auth.RoleAdmin},
}

func main() {
	var (
		databaseURL string
		jwtSecret   string
		tokenTTL    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "secret used to print demo tokens (or KART_JWT_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 30*24*time.Hour, "lifetime of the printed demo tokens")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("KART_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, jwtSecret, tokenTTL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, jwtSecret string, tokenTTL time.Duration) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	productRepo := postgres.NewProductRepository(pool)
	for i := range products {
		p := &products[i]
		if err := productRepo.Upsert(ctx, p); err != nil {
			return errors.Wrap(err, "seed products")
		}
		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("sku", p.SKU), slog.Int("stock", p.Stock))
	}

	promotionRepo := postgres.NewPromotionRepository(pool)
	for _, p := range promotions(time.Now()) {
		if err := promotionRepo.Upsert(ctx, &p); err != nil {
			return errors.Wrap(err, "seed promotions")
		}
		slog.Info("upserted promotion",
			slog.String("code", p.Code),
			slog.String("type", string(p.Type)),
			slog.Int("used", p.UsedCount),
		)
	}

	customerRepo := postgres.NewCustomerRepository(pool)
	var tokens *auth.Tokens
	if jwtSecret != "" {
		tokens = auth.NewTokens([]byte(jwtSecret))
	} else {
		slog.Warn("no JWT secret given, demo tokens will not be printed")
	}
	for i := range customers {
		c := &customers[i]
		if err := customerRepo.Upsert(ctx, c); err != nil {
			return errors.Wrap(err, "seed customers")
		}
		attrs := []any{slog.Int64("id", c.CustomerID), slog.String("email", c.Email), slog.String("role", string(c.Role))}
		if tokens != nil {
			token, err := tokens.Issue(c.CustomerID, tokenTTL)
			if err != nil {
				return errors.Wrapf(err, "issue token for %s", c.Email)
			}
			attrs = append(attrs, slog.String("token", token))
		}
		slog.Info("upserted customer", attrs...)
	}

	return nil
}
