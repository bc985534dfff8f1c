package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-service/internal/domain/product"
)

const (
	productColumns = `id, name, price, stock, category_id, discount_rate`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		ORDER BY id OFFSET $1 LIMIT $2`

	listProductsByCategorySQL = `SELECT ` + productColumns + ` FROM products
		WHERE category_id = $1 ORDER BY id OFFSET $2 LIMIT $3`

	countProductsSQL = `SELECT count(*) FROM products`

	countProductsByCategorySQL = `SELECT count(*) FROM products WHERE category_id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, stock, category_id, discount_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			category_id = EXCLUDED.category_id,
			discount_rate = EXCLUDED.discount_rate`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// FindByID returns a single product, or product.ErrNotFound.
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// FindByCategory returns a window of products in a category ordered by ID.
func (r *ProductRepository) FindByCategory(ctx context.Context, categoryID int64, offset, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsByCategorySQL, categoryID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing products of category %d: %w", categoryID, err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products of category %d: %w", categoryID, err)
	}
	return products, nil
}

// FindAll returns a window of all products ordered by ID.
func (r *ProductRepository) FindAll(ctx context.Context, offset, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// CountByCategory returns the number of products in a category.
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID int64) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countProductsByCategorySQL, categoryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products of category %d: %w", categoryID, err)
	}
	return n, nil
}

// CountAll returns the number of products in the catalog.
func (r *ProductRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// Upsert inserts p or overwrites the product with the same ID.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Price, p.Stock, p.CategoryID, decimal.NewFromFloat(p.DiscountRate),
	)
	if err != nil {
		return fmt.Errorf("upserting product %d: %w", p.ID, err)
	}
	return nil
}

// scanProduct rebuilds the row through product.New so that a row violating
// the entity rules surfaces as a validation error.
func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		id, price, stock, categoryID int64
		name                         string
		rate                         decimal.Decimal
	)
	if err := row.Scan(&id, &name, &price, &stock, &categoryID, &rate); err != nil {
		return product.Product{}, err
	}
	return product.New(id, name, price, stock, categoryID, rate.InexactFloat64())
}
