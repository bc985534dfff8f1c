// Package catalog implements the product catalog read use cases.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-service/internal/cacheaside"
	"github.com/xenking/catalog-service/internal/domain/category"
	"github.com/xenking/catalog-service/internal/domain/coupon"
	"github.com/xenking/catalog-service/internal/domain/product"
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ID)
}

// CategoryNotFoundError indicates a requested category does not exist.
type CategoryNotFoundError struct {
	ID int64
}

func (e *CategoryNotFoundError) Error() string {
	return fmt.Sprintf("category %d not found", e.ID)
}

// ListQuery selects a window of products. CategoryID 0 lists every
// category. Offset and Limit are expected to be validated by the caller.
type ListQuery struct {
	CategoryID int64
	Offset     int
	Limit      int
}

// Listing is one page of products together with the total count for the
// same filter.
type Listing struct {
	Products   []product.Product
	TotalCount int64
}

// Detail is a product with the coupon requested for it, if any.
type Detail struct {
	Product product.Product
	Coupon  *coupon.Coupon
}

// Quote returns the price breakdown for the detail.
func (d *Detail) Quote() product.Quote {
	return product.NewQuote(d.Product, d.Coupon)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for coupon validity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder sets the observer of cache outcomes.
func WithRecorder(rec cacheaside.Recorder) Option {
	return func(s *Service) { s.recorder = rec }
}

// WithTracerProvider enables tracing of service operations.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("catalog") }
}

// Service composes the repositories, the cache and the price engine into
// the catalog read use cases.
type Service struct {
	products   product.Repository
	coupons    coupon.Repository
	categories category.Repository
	cache      Cache

	now      func() time.Time
	recorder cacheaside.Recorder
	tracer   trace.Tracer
}

// NewService creates a Service. cache, coupons and categories may be nil:
// a nil cache disables caching, a nil coupon repository makes every coupon
// lookup fail with *coupon.NotFoundError, and a nil category repository
// yields no categories.
func NewService(
	products product.Repository,
	coupons coupon.Repository,
	categories category.Repository,
	cache Cache,
	opts ...Option,
) *Service {
	s := &Service{
		products:   products,
		coupons:    coupons,
		categories: categories,
		cache:      cache,
		now:        time.Now,
		recorder:   cacheaside.NopRecorder{},
		tracer:     noop.NewTracerProvider().Tracer("catalog"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListProducts returns a page of products and the total count for the
// filter. Both reads go through the cache independently and run
// concurrently.
func (s *Service) ListProducts(ctx context.Context, q ListQuery) (_ *Listing, rerr error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListProducts", trace.WithAttributes(
		attribute.Int64("catalog.category_id", q.CategoryID),
		attribute.Int("catalog.offset", q.Offset),
		attribute.Int("catalog.limit", q.Limit),
	))
	defer endSpan(span, &rerr)

	var (
		page  []product.Product
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page, err = s.loadPage(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.CountProducts(gctx, q.CategoryID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if page == nil {
		page = []product.Product{}
	}
	return &Listing{Products: page, TotalCount: total}, nil
}

func (s *Service) loadPage(ctx context.Context, q ListQuery) ([]product.Product, error) {
	l := cacheaside.Loader[[]product.Product]{
		Name: "product_list",
		Fetch: func(ctx context.Context) ([]product.Product, error) {
			var (
				page []product.Product
				err  error
			)
			if q.CategoryID != 0 {
				page, err = s.products.FindByCategory(ctx, q.CategoryID, q.Offset, q.Limit)
			} else {
				page, err = s.products.FindAll(ctx, q.Offset, q.Limit)
			}
			if err != nil {
				return nil, errors.Wrap(err, "list products")
			}
			return page, nil
		},
	}
	if s.cache != nil {
		l.Get = func(ctx context.Context) ([]product.Product, bool, error) {
			return s.cache.GetProductList(ctx, q.CategoryID, q.Offset, q.Limit)
		}
		l.Set = func(ctx context.Context, page []product.Product) error {
			return s.cache.SetProductList(ctx, page, q.CategoryID, q.Offset, q.Limit)
		}
	}
	return cacheaside.Load(ctx, s.recorder, l)
}

// CountProducts returns the number of products in a category, or in the
// whole catalog when categoryID is 0.
func (s *Service) CountProducts(ctx context.Context, categoryID int64) (int64, error) {
	l := cacheaside.Loader[int64]{
		Name: "product_count",
		Fetch: func(ctx context.Context) (int64, error) {
			var (
				n   int64
				err error
			)
			if categoryID != 0 {
				n, err = s.products.CountByCategory(ctx, categoryID)
			} else {
				n, err = s.products.CountAll(ctx)
			}
			if err != nil {
				return 0, errors.Wrap(err, "count products")
			}
			return n, nil
		},
	}
	if s.cache != nil {
		l.Get = func(ctx context.Context) (int64, bool, error) {
			return s.cache.GetProductCount(ctx, categoryID)
		}
		l.Set = func(ctx context.Context, n int64) error {
			return s.cache.SetProductCount(ctx, n, categoryID)
		}
	}
	return cacheaside.Load(ctx, s.recorder, l)
}

// GetProductDetail resolves a product and, when couponCode is not empty,
// the coupon to price it with. Detail reads always go to the repository.
//
// Errors: *ProductNotFoundError, *coupon.NotFoundError, *coupon.InvalidError,
// or a wrapped repository failure.
func (s *Service) GetProductDetail(ctx context.Context, id int64, couponCode string) (_ *Detail, rerr error) {
	ctx, span := s.tracer.Start(ctx, "catalog.GetProductDetail", trace.WithAttributes(
		attribute.Int64("catalog.product_id", id),
		attribute.Bool("catalog.with_coupon", couponCode != ""),
	))
	defer endSpan(span, &rerr)

	p, err := s.products.FindByID(ctx, id)
	switch {
	case errors.Is(err, product.ErrNotFound), err == nil && p == nil:
		return nil, &ProductNotFoundError{ID: id}
	case err != nil:
		return nil, errors.Wrap(err, "get product")
	}

	if couponCode == "" {
		return &Detail{Product: *p}, nil
	}

	c, err := coupon.NewRepoValidator(s.coupons, s.now).Validate(ctx, couponCode)
	if err != nil {
		return nil, err
	}

	return &Detail{Product: *p, Coupon: c}, nil
}

// ListCategories returns every category ordered by ID.
func (s *Service) ListCategories(ctx context.Context) ([]category.Category, error) {
	if s.categories == nil {
		return []category.Category{}, nil
	}
	cats, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	if cats == nil {
		cats = []category.Category{}
	}
	return cats, nil
}

// GetCategory returns a single category or *CategoryNotFoundError.
func (s *Service) GetCategory(ctx context.Context, id int64) (*category.Category, error) {
	if s.categories == nil {
		return nil, &CategoryNotFoundError{ID: id}
	}
	c, err := s.categories.FindByID(ctx, id)
	switch {
	case errors.Is(err, category.ErrNotFound), err == nil && c == nil:
		return nil, &CategoryNotFoundError{ID: id}
	case err != nil:
		return nil, errors.Wrap(err, "get category")
	}
	return c, nil
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
