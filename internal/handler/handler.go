// Package handler exposes the catalog over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/catalog-service/internal/domain/catalog"
	"github.com/xenking/catalog-service/internal/domain/category"
)

// Catalog is the subset of catalog.Service used by the handlers.
type Catalog interface {
	ListProducts(ctx context.Context, q catalog.ListQuery) (*catalog.Listing, error)
	GetProductDetail(ctx context.Context, id int64, couponCode string) (*catalog.Detail, error)
	ListCategories(ctx context.Context) ([]category.Category, error)
	GetCategory(ctx context.Context, id int64) (*category.Category, error)
}

var _ Catalog = (*catalog.Service)(nil)

// Config holds paging limits for list endpoints.
type Config struct {
	// DefaultLimit is used when the request carries no limit.
	DefaultLimit int
	// MaxLimit caps the page size a client may request.
	MaxLimit int
}

// Handler serves the catalog read API.
type Handler struct {
	catalog      Catalog
	defaultLimit int
	maxLimit     int
}

// NewHandler constructs a Handler. Zero limits default to 20 and 100.
func NewHandler(cfg Config, c Catalog) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &Handler{
		catalog:      c,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
}

// Routes returns the API router, to be mounted under a path prefix.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{productID}", h.GetProduct)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{categoryID}", h.GetCategory)
	})

	return r
}
