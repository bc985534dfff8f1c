package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-service/internal/domain/category"
	"github.com/xenking/catalog-service/internal/domain/coupon"
	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/repository"
)

// seedFile is the layout of the catalog seed JSON. Entries decode straight
// into the domain types and are re-checked by their constructors.
type seedFile struct {
	Categories []category.Category `json:"categories"`
	Products   []product.Product   `json:"products"`
	Coupons    []coupon.Coupon     `json:"coupons"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	seed, err := readSeed(seedPath)
	if err != nil {
		return err
	}

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

	categories := repository.NewCategoryRepository(pool)
	for _, c := range seed.Categories {
		if err := categories.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert category %d", c.ID)
		}
	}
	slog.Info("upserted categories", slog.Int("count", len(seed.Categories)))

	products := repository.NewProductRepository(pool)
	for _, p := range seed.Products {
		if err := products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}
		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	if err := repository.NewCouponRepository(pool).UpsertBatch(ctx, seed.Coupons); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	slog.Info("upserted coupons", slog.Int("count", len(seed.Coupons)))

	if err := repository.ResetSequences(ctx, pool); err != nil {
		return errors.Wrap(err, "reset sequences")
	}
	return nil
}

// readSeed loads the seed file and rebuilds every entry through its
// constructor, so a bad file fails before anything is written.
func readSeed(path string) (*seedFile, error) {
	slog.Info("reading seed file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}

	var raw seedFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse seed JSON")
	}

	seed := &seedFile{
		Categories: make([]category.Category, 0, len(raw.Categories)),
		Products:   make([]product.Product, 0, len(raw.Products)),
		Coupons:    make([]coupon.Coupon, 0, len(raw.Coupons)),
	}
	for _, in := range raw.Categories {
		c, err := category.New(in.ID, in.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "category %d", in.ID)
		}
		seed.Categories = append(seed.Categories, c)
	}
	for _, in := range raw.Products {
		p, err := product.New(in.ID, in.Name, in.Price, in.Stock, in.CategoryID, in.DiscountRate)
		if err != nil {
			return nil, errors.Wrapf(err, "product %d", in.ID)
		}
		seed.Products = append(seed.Products, p)
	}
	for _, in := range raw.Coupons {
		c, err := coupon.New(in.ID, in.Code, in.DiscountType, in.DiscountValue, in.ValidFrom, in.ValidTo)
		if err != nil {
			return nil, errors.Wrapf(err, "coupon %q", in.Code)
		}
		seed.Coupons = append(seed.Coupons, c)
	}
	return seed, nil
}
