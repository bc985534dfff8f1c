package catalog

import (
	"context"

	"github.com/xenking/catalog-service/internal/domain/product"
)

// Cache accelerates product list and count reads. Implementations key each
// entry by the same query shape as the repository call it mirrors. A
// categoryID of 0 means all categories.
//
// Get methods return ok=false on a miss. Errors are treated as misses by
// the Service and never reach its callers.
type Cache interface {
	GetProductList(ctx context.Context, categoryID int64, offset, limit int) ([]product.Product, bool, error)
	SetProductList(ctx context.Context, products []product.Product, categoryID int64, offset, limit int) error
	GetProductCount(ctx context.Context, categoryID int64) (int64, bool, error)
	SetProductCount(ctx context.Context, count int64, categoryID int64) error
}
