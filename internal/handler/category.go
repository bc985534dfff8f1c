package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/catalog-service/internal/domain/category"
)

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range cats {
			encodeCategory(e, c)
		}
		e.ArrEnd()
	})
}

// GetCategory handles GET /categories/{categoryID}.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	p, err := parseCategoryParams(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	c, err := h.catalog.GetCategory(r.Context(), p.CategoryID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCategory(e, *c)
	})
}

func encodeCategory(e *jx.Encoder, c category.Category) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.ObjEnd()
}
