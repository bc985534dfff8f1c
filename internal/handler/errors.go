package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/domain/catalog"
	"github.com/xenking/catalog-service/internal/domain/coupon"
)

// mapCatalogError translates domain errors into an HTTP status and a
// client-facing message. Unknown errors map to 500 with a generic message.
func mapCatalogError(err error) (int, string) {
	var pnfErr *catalog.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		return http.StatusNotFound, pnfErr.Error()
	}

	var cnfErr *catalog.CategoryNotFoundError
	if errors.As(err, &cnfErr) {
		return http.StatusNotFound, cnfErr.Error()
	}

	var couponNF *coupon.NotFoundError
	if errors.As(err, &couponNF) {
		return http.StatusNotFound, couponNF.Error()
	}

	var invalid *coupon.InvalidError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, invalid.Error()
	}

	return http.StatusInternalServerError, "internal server error"
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapCatalogError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Best effort: the status is already on the wire.
	_, _ = w.Write(e.Bytes())
}
