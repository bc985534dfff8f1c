package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/catalog-service/internal/domain/catalog"
	"github.com/xenking/catalog-service/internal/domain/product"
)

// ListProducts handles GET /products?category_id=&page=&limit=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p, err := h.parseListParams(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	listing, err := h.catalog.ListProducts(r.Context(), catalog.ListQuery{
		CategoryID: p.CategoryID,
		Offset:     (p.Page - 1) * p.Limit,
		Limit:      p.Limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("products")
		e.ArrStart()
		for _, item := range listing.Products {
			encodeListItem(e, item)
		}
		e.ArrEnd()
		e.FieldStart("total_count")
		e.Int64(listing.TotalCount)
		e.FieldStart("total_pages")
		e.Int64(totalPages(listing.TotalCount, p.Limit))
		e.FieldStart("current_page")
		e.Int(p.Page)
		e.FieldStart("limit")
		e.Int(p.Limit)
		e.ObjEnd()
	})
}

// GetProduct handles GET /products/{productID}?coupon_code=.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := parseDetailParams(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	detail, err := h.catalog.GetProductDetail(r.Context(), p.ProductID, p.CouponCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	quote := detail.Quote()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(detail.Product.ID)
		e.FieldStart("name")
		e.Str(detail.Product.Name)
		e.FieldStart("category_id")
		e.Int64(detail.Product.CategoryID)
		e.FieldStart("stock")
		e.Int64(detail.Product.Stock)
		e.FieldStart("original_price")
		e.Int64(quote.Original)
		e.FieldStart("discount_rate")
		e.Float64(detail.Product.DiscountRate)
		e.FieldStart("discounted_price")
		e.Int64(quote.Discounted)
		e.FieldStart("coupon_code")
		if detail.Coupon != nil {
			e.Str(detail.Coupon.Code)
		} else {
			e.Null()
		}
		e.FieldStart("coupon_discount")
		e.Int64(quote.CouponDiscount)
		e.FieldStart("final_price")
		e.Int64(quote.Final)
		e.ObjEnd()
	})
}

func encodeListItem(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Int64(p.Price)
	e.FieldStart("discount_rate")
	e.Float64(p.DiscountRate)
	e.FieldStart("discounted_price")
	e.Int64(product.DiscountedPrice(p))
	e.FieldStart("stock")
	e.Int64(p.Stock)
	e.FieldStart("category_id")
	e.Int64(p.CategoryID)
	e.ObjEnd()
}

// totalPages returns ceil(count/limit).
func totalPages(count int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	l := int64(limit)
	return (count + l - 1) / l
}
