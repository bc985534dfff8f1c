package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/catalog-service/internal/domain"
)

type listParams struct {
	CategoryID int64 `json:"category_id" validate:"gte=0"`
	Page       int   `json:"page" validate:"gte=1"`
	Limit      int   `json:"limit" validate:"gte=1"`
}

type detailParams struct {
	ProductID  int64  `json:"product_id" validate:"gte=1"`
	CouponCode string `json:"coupon_code" validate:"omitempty,len=12,alphanum,uppercase"`
}

type categoryParams struct {
	CategoryID int64 `json:"category_id" validate:"gte=1"`
}

func (h *Handler) parseListParams(r *http.Request) (listParams, error) {
	q := r.URL.Query()
	p := listParams{Page: 1, Limit: h.defaultLimit}

	var err error
	if v := q.Get("category_id"); v != "" {
		if p.CategoryID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return p, domain.Invalid("request", "category_id", "must be an integer")
		}
		if p.CategoryID == 0 {
			return p, domain.Invalid("request", "category_id", "must be at least 1")
		}
	}
	if v := q.Get("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil {
			return p, domain.Invalid("request", "page", "must be an integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			return p, domain.Invalid("request", "limit", "must be an integer")
		}
	}

	if err := domain.Check("request", p); err != nil {
		return p, err
	}
	if p.Limit > h.maxLimit {
		return p, domain.Invalid("request", "limit", "must be at most "+strconv.Itoa(h.maxLimit))
	}
	// The offset (page-1)*limit must fit in an int.
	if p.Page-1 > math.MaxInt/p.Limit {
		return p, domain.Invalid("request", "page", "is too large")
	}
	return p, nil
}

func parseDetailParams(r *http.Request) (detailParams, error) {
	var p detailParams

	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		return p, domain.Invalid("request", "product_id", "must be an integer")
	}
	p.ProductID = id
	p.CouponCode = r.URL.Query().Get("coupon_code")

	if err := domain.Check("request", p); err != nil {
		return p, err
	}
	return p, nil
}

func parseCategoryParams(r *http.Request) (categoryParams, error) {
	var p categoryParams

	id, err := strconv.ParseInt(chi.URLParam(r, "categoryID"), 10, 64)
	if err != nil {
		return p, domain.Invalid("request", "category_id", "must be an integer")
	}
	p.CategoryID = id

	if err := domain.Check("request", p); err != nil {
		return p, err
	}
	return p, nil
}
