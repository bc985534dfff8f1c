package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-service/internal/domain"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item. Price is in minor currency units and
// DiscountRate is the product-level markdown applied before any coupon.
type Product struct {
	ID           int64   `json:"id" validate:"gt=0"`
	Name         string  `json:"name" validate:"required"`
	Price        int64   `json:"price" validate:"gte=0"`
	Stock        int64   `json:"stock" validate:"gte=0"`
	CategoryID   int64   `json:"category_id" validate:"gt=0"`
	DiscountRate float64 `json:"discount_rate" validate:"gte=0,lte=1"`
}

// New validates the fields and returns a Product. It fails with a
// *domain.ValidationError when any field is out of range.
func New(id int64, name string, price, stock, categoryID int64, discountRate float64) (Product, error) {
	p := Product{
		ID:           id,
		Name:         name,
		Price:        price,
		Stock:        stock,
		CategoryID:   categoryID,
		DiscountRate: discountRate,
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Validate checks the product invariants.
func (p Product) Validate() error {
	return domain.Check("product", p)
}

// Repository defines the authoritative read operations for products.
// Listings are ordered by ascending ID and windowed by offset/limit.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindByCategory(ctx context.Context, categoryID int64, offset, limit int) ([]Product, error)
	FindAll(ctx context.Context, offset, limit int) ([]Product, error)
	CountByCategory(ctx context.Context, categoryID int64) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}
