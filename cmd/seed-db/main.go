// Command seed-db loads the catalog seed file, a few demo coupons, and the
// admin API key into the database. Safe to re-run: every write is an upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/majida-lubana/pure-botanica/internal/auth"
	"github.com/majida-lubana/pure-botanica/internal/domain/catalog"
	"github.com/majida-lubana/pure-botanica/internal/domain/coupon"
	"github.com/majida-lubana/pure-botanica/internal/repository"
)

type seedFile struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
}

type categoryJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	OfferPercent decimal.Decimal `json:"offer_percent"`
	OfferActive  bool            `json:"offer_active"`
}

type productJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	CategoryID   string          `json:"category_id"`
	RegularPrice decimal.Decimal `json:"regular_price"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	OfferPercent decimal.Decimal `json:"offer_percent"`
	Stock        int             `json:"stock"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
		adminKey    string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or BOTANICA_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BOTANICA_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("BOTANICA_SEED_ADMIN_KEY")
	}
	if adminKey == "" {
		slog.Error("admin API key is required: set --admin-key or BOTANICA_SEED_ADMIN_KEY")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("BOTANICA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, adminKey, pepper string) error {
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

	db := repository.NewDB(pool)

	if err := seedCatalog(ctx, db, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedCoupons(ctx, db); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAdminKey(ctx, db, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed admin key")
	}
	return nil
}

func seedCatalog(ctx context.Context, db *repository.DB, path string) error {
	slog.Info("reading catalog seed file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	categories := repository.NewCategoryRepository(db)
	for _, c := range seed.Categories {
		cat := catalog.Category{
			ID:           c.ID,
			Name:         c.Name,
			Description:  c.Description,
			OfferPercent: c.OfferPercent,
			OfferActive:  c.OfferActive,
		}
		if err := cat.ValidateOffer(); err != nil {
			return errors.Wrapf(err, "category %s", c.ID)
		}
		if err := categories.Create(ctx, &cat); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
		slog.Info("upserted category", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	products := repository.NewProductRepository(db)
	for _, p := range seed.Products {
		prod := catalog.Product{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			CategoryID:   p.CategoryID,
			RegularPrice: p.RegularPrice,
			SalePrice:    p.SalePrice,
			OfferPercent: p.OfferPercent,
			Stock:        p.Stock,
			Status:       catalog.ProductAvailable,
		}
		if err := prod.Normalize(); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}
		if err := products.Create(ctx, &prod); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, db *repository.DB) error {
	slog.Info("seeding demo coupons")

	expiry := time.Now().AddDate(1, 0, 0)
	coupons := []coupon.Coupon{
		{
			Code:         "WELCOME10",
			Type:         coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  decimal.NewFromInt(150),
			MinimumOrder: decimal.NewFromInt(500),
			ExpiresOn:    &expiry,
			Listed:       true,
			Description:  "10% off your first order above 500",
		},
		{
			Code:         "FLAT100",
			Type:         coupon.DiscountFixed,
			Value:        decimal.NewFromInt(100),
			MinimumOrder: decimal.NewFromInt(1000),
			ExpiresOn:    &expiry,
			Listed:       true,
			Description:  "Flat 100 off orders above 1000",
		},
	}

	repo := repository.NewCouponRepository(db)
	for i := range coupons {
		if err := repo.Create(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
		slog.Info("upserted coupon", slog.String("code", coupons[i].Code))
	}
	return nil
}

func seedAdminKey(ctx context.Context, db *repository.DB, adminKey, pepper string) error {
	slog.Info("seeding admin API key")

	repo := repository.NewAPIKeyRepository(db)
	if err := repo.Insert(ctx, auth.KeyInfo{
		KeyHash: auth.HashKey([]byte(pepper), adminKey),
		UserID:  "admin",
		IsAdmin: true,
	}); err != nil {
		return errors.Wrap(err, "insert admin key")
	}

	slog.Info("upserted admin API key", slog.String("user_id", "admin"))
	return nil
}
