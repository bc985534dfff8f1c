package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-service/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_type, discount_value, valid_from, valid_to
		FROM coupons WHERE code = $1`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, discount_value, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its exact code. Returns coupon.ErrNotFound
// when no coupon has that code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Upsert inserts c or overwrites the coupon with the same code. The ID of
// c is ignored; the database assigns it.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL, couponArgs(c)...)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// UpsertBatch upserts coupons in a single round trip.
func (r *CouponRepository) UpsertBatch(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL, couponArgs(c)...)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d coupons: %w", len(coupons), err)
	}
	return nil
}

func couponArgs(c coupon.Coupon) []any {
	return []any{
		c.Code, string(c.DiscountType), decimal.NewFromFloat(c.DiscountValue), c.ValidFrom, c.ValidTo,
	}
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		id           int64
		code         string
		discountType string
		value        decimal.Decimal
		validFrom    *time.Time
		validTo      *time.Time
	)
	if err := row.Scan(&id, &code, &discountType, &value, &validFrom, &validTo); err != nil {
		return coupon.Coupon{}, err
	}
	return coupon.New(id, code, coupon.DiscountType(discountType), value.InexactFloat64(), validFrom, validTo)
}
