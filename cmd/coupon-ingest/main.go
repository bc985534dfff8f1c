package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-service/internal/repository"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		opts        options
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing partner *.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.capacity, "bloom-capacity", 10_000_000, "expected codes per file")
	flag.Float64Var(&opts.fpr, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.IntVar(&opts.batchSize, "batch-size", 1000, "coupons per upsert batch")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and report without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, opts); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, opts options) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list partner files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}
	if len(files) > maxFiles {
		return errors.Errorf("too many partner files: %d (max %d)", len(files), maxFiles)
	}
	sort.Strings(files)

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding codes defined in several files")

	conflicts, err := findConflicts(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find conflicts")
	}

	slog.Info("conflicting codes found", slog.Int("count", len(conflicts)))

	var w batchWriter = discardWriter{}
	if !opts.dryRun {
		slog.Info("connecting to database")

		pool, err := repository.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		if err := repository.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		w = repository.NewCouponRepository(pool)
	}

	slog.Info("pass 3: importing coupons", slog.Bool("dry_run", opts.dryRun))

	stats, err := importCoupons(ctx, files, conflicts, w, opts.batchSize)
	if err != nil {
		return errors.Wrap(err, "import coupons")
	}

	slog.Info("import summary",
		slog.Int("imported", stats.imported),
		slog.Int("conflicting", stats.conflicting),
		slog.Int("invalid", stats.invalid),
	)
	return nil
}
