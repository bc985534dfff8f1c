package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-service/internal/domain/coupon"
)

const (
	maxFiles      = bits.UintSize
	progressEvery = 1_000_000
)

type options struct {
	capacity  uint
	fpr       float64
	batchSize int
	dryRun    bool
}

// batchWriter persists parsed coupons. *repository.CouponRepository
// implements it.
type batchWriter interface {
	UpsertBatch(ctx context.Context, coupons []coupon.Coupon) error
}

type discardWriter struct{}

func (discardWriter) UpsertBatch(context.Context, []coupon.Coupon) error { return nil }

type importStats struct {
	imported    int
	conflicting int
	invalid     int
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, opts options) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.capacity, opts.fpr)
			var count uint64

			if err := streamGzFile(ctx, path, func(line string) {
				code, ok := lineCode(line)
				if !ok {
					return
				}
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findConflicts re-streams each file and marks codes that another file's
// filter may contain. A code marked by two or more files is really defined
// in both: each file only marks codes it holds itself, so bloom false
// positives never reach the threshold.
func findConflicts(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)

			if err := streamGzFile(ctx, path, func(line string) {
				code, ok := lineCode(line)
				if !ok {
					return
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s for conflicts", path)
			}

			slog.Info("pass 2 complete", slog.String("file", path), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}

	conflicts := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			conflicts[code] = struct{}{}
		}
	}
	return conflicts, nil
}

// importCoupons streams the files once more, skipping conflicting codes and
// invalid lines, and writes the rest in batches.
func importCoupons(
	ctx context.Context,
	files []string,
	conflicts map[string]struct{},
	w batchWriter,
	batchSize int,
) (importStats, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var (
		stats importStats
		batch = make([]coupon.Coupon, 0, batchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		stats.imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, path := range files {
		var werr error
		err := streamGzFile(ctx, path, func(line string) {
			if werr != nil {
				return
			}
			code, ok := lineCode(line)
			if !ok {
				return
			}
			if _, skip := conflicts[code]; skip {
				stats.conflicting++
				return
			}

			c, err := parseLine(line)
			if err != nil {
				stats.invalid++
				slog.Warn("skipping invalid line",
					slog.String("file", path),
					slog.String("code", code),
					slog.String("error", err.Error()),
				)
				return
			}

			batch = append(batch, c)
			if len(batch) == batchSize {
				werr = flush()
			}
		})
		if err != nil {
			return stats, errors.Wrapf(err, "import %s", path)
		}
		if werr != nil {
			return stats, errors.Wrapf(werr, "write batch from %s", path)
		}
	}

	if err := flush(); err != nil {
		return stats, errors.Wrap(err, "write final batch")
	}
	return stats, nil
}

// lineCode returns the code field of a data line. Blank lines and lines
// starting with '#' carry no code.
func lineCode(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}
	code, _, _ := strings.Cut(line, ",")
	return strings.TrimSpace(code), true
}

// parseLine parses CODE,TYPE,VALUE[,VALID_FROM[,VALID_TO]]. Timestamps are
// RFC 3339; an empty one leaves that side of the window open.
func parseLine(line string) (coupon.Coupon, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 3 || len(fields) > 5 {
		return coupon.Coupon{}, errors.Errorf("expected 3 to 5 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	value, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse value")
	}

	var validFrom, validTo *time.Time
	if len(fields) > 3 {
		if validFrom, err = parseTime(fields[3]); err != nil {
			return coupon.Coupon{}, errors.Wrap(err, "parse valid_from")
		}
	}
	if len(fields) > 4 {
		if validTo, err = parseTime(fields[4]); err != nil {
			return coupon.Coupon{}, errors.Wrap(err, "parse valid_to")
		}
	}

	// The database assigns ids on insert; 1 only satisfies validation.
	return coupon.New(1, fields[0], coupon.DiscountType(strings.ToLower(fields[1])), value, validFrom, validTo)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
