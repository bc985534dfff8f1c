// Package category defines product categories.
package category

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-service/internal/domain"
)

// ErrNotFound is returned when a requested category does not exist.
var ErrNotFound = errors.New("category not found")

// Category groups products. Products reference it by ID only.
type Category struct {
	ID   int64  `json:"id" validate:"gt=0"`
	Name string `json:"name" validate:"required"`
}

// New trims name and returns a validated Category.
func New(id int64, name string) (Category, error) {
	c := Category{ID: id, Name: strings.TrimSpace(name)}
	if err := domain.Check("category", c); err != nil {
		return Category{}, err
	}
	return c, nil
}

// Repository defines read operations for categories.
type Repository interface {
	FindAll(ctx context.Context) ([]Category, error)
	FindByID(ctx context.Context, id int64) (*Category, error)
}
