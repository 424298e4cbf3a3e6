// Command seed-db loads the product catalog, demo coupons, and a default API
// key into PostgreSQL. Safe to re-run; everything is upserted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/casashop/cart-api/internal/domain/auth"
	"github.com/casashop/cart-api/internal/domain/coupon"
	"github.com/casashop/cart-api/internal/domain/product"
	"github.com/casashop/cart-api/internal/repository"
)

type productJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brand struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"brand"`
	Price           decimal.Decimal `json:"price"`
	OfferPercentage int             `json:"offerPercentage"`
	Category        string          `json:"category"`
	Image           struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
	Sizes []struct {
		Size  string `json:"size"`
		Stock int    `json:"stock"`
	} `json:"sizes"`
	AssignedCoupons []string `json:"assignedCoupons"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CART_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CART_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CART_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CART_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	// Coupons first: product coupon assignments reference them.
	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		sizes := make([]product.SizeStock, len(p.Sizes))
		for i, s := range p.Sizes {
			sizes[i] = product.SizeStock{Size: s.Size, Stock: s.Stock}
		}

		if err := repo.Upsert(ctx, &product.Product{
			ID:              p.ID,
			Name:            p.Name,
			Brand:           product.Brand{ID: p.Brand.ID, Name: p.Brand.Name},
			Price:           p.Price,
			OfferPercentage: p.OfferPercentage,
			Category:        p.Category,
			Image: product.Image{
				Thumbnail: p.Image.Thumbnail,
				Mobile:    p.Image.Mobile,
				Tablet:    p.Image.Tablet,
				Desktop:   p.Image.Desktop,
			},
			Sizes:           sizes,
			AssignedCoupons: p.AssignedCoupons,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding demo coupons")

	coupons := []coupon.Rule{
		{
			Code:          "SAVE200",
			DiscountType:  coupon.DiscountFixed,
			Value:         decimal.NewFromInt(200),
			MinOrderValue: decimal.NewFromInt(1500),
			Description:   "Flat 200 off on orders above 1500",
		},
		{
			Code:         "WELCOME10",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  decimal.NewFromInt(500),
			Description:  "Welcome: 10% off, up to 500",
		},
		{
			Code:          "FESTIVE25",
			DiscountType:  coupon.DiscountPercentage,
			Value:         decimal.NewFromInt(25),
			MinOrderValue: decimal.NewFromInt(3000),
			MaxDiscount:   decimal.NewFromInt(1200),
			Description:   "Festive season: 25% off orders above 3000",
		},
	}

	for i := range coupons {
		c := &coupons[i]
		if err := repo.Upsert(ctx, c, true); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	key := &auth.APIKey{
		ID:      "default",
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    "Default test key",
		Scopes:  []string{"create_order"},
	}
	if err := repo.Upsert(ctx, key, true); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", key.ID), slog.String("name", key.Name))

	return nil
}
