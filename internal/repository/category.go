package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/catalog-service/internal/domain/category"
)

const (
	listCategoriesSQL = `SELECT id, name FROM categories ORDER BY id`

	getCategoryByIDSQL = `SELECT id, name FROM categories WHERE id = $1`

	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// FindAll returns every category ordered by ID.
func (r *CategoryRepository) FindAll(ctx context.Context) ([]category.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	cats, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return cats, nil
}

// FindByID returns a single category, or category.ErrNotFound.
func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*category.Category, error) {
	rows, err := r.pool.Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, category.ErrNotFound
		}
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	return &c, nil
}

// Upsert inserts c or renames the category with the same ID.
func (r *CategoryRepository) Upsert(ctx context.Context, c category.Category) error {
	if _, err := r.pool.Exec(ctx, upsertCategorySQL, c.ID, c.Name); err != nil {
		return fmt.Errorf("upserting category %d: %w", c.ID, err)
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (category.Category, error) {
	var (
		id   int64
		name string
	)
	if err := row.Scan(&id, &name); err != nil {
		return category.Category{}, err
	}
	return category.New(id, name)
}
