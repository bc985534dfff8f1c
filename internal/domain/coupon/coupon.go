package coupon

import (
	"context"
	"regexp"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-service/internal/domain"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountRate takes a fraction in [0, 1] off the discounted price.
	DiscountRate DiscountType = "rate"
	// DiscountAmount subtracts a flat amount, floored at zero.
	DiscountAmount DiscountType = "amount"
)

// ErrNotFound is returned by repositories when no coupon has the given code.
var ErrNotFound = errors.New("coupon not found")

// Window rejection reasons reported by CheckWindow.
const (
	ReasonNotYetValid = "not yet valid"
	ReasonExpired     = "expired"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{12}$`)

// Coupon is a code-keyed, optionally time-bounded discount. A nil ValidFrom
// or ValidTo leaves that side of the window unbounded.
type Coupon struct {
	ID            int64        `json:"id" validate:"gt=0"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type" validate:"oneof=rate amount"`
	DiscountValue float64      `json:"discount_value" validate:"gte=0"`
	ValidFrom     *time.Time   `json:"valid_from"`
	ValidTo       *time.Time   `json:"valid_to"`
}

// New validates the fields and returns a Coupon. The code must be exactly
// twelve characters of A-Z and 0-9. Rate coupons take values in [0, 1],
// amount coupons any non-negative value.
func New(
	id int64,
	code string,
	discountType DiscountType,
	discountValue float64,
	validFrom, validTo *time.Time,
) (Coupon, error) {
	c := Coupon{
		ID:            id,
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: discountValue,
		ValidFrom:     validFrom,
		ValidTo:       validTo,
	}
	if err := c.Validate(); err != nil {
		return Coupon{}, err
	}
	return c, nil
}

// Validate checks the coupon invariants, including the type/value pairing.
func (c Coupon) Validate() error {
	if !codePattern.MatchString(c.Code) {
		return domain.Invalid("coupon", "code", "must be 12 characters of A-Z and 0-9")
	}
	if err := domain.Check("coupon", c); err != nil {
		return err
	}
	if c.DiscountType == DiscountRate && c.DiscountValue > 1 {
		return domain.Invalid("coupon", "discount_value", "must be at most 1 for rate coupons")
	}
	return nil
}

// CheckWindow returns an empty string when now lies inside the validity
// window, otherwise the rejection reason.
func (c Coupon) CheckWindow(now time.Time) string {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ReasonNotYetValid
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return ReasonExpired
	}
	return ""
}

// IsValid reports whether the coupon may be applied at now. Both window
// bounds are inclusive.
func (c Coupon) IsValid(now time.Time) bool {
	return c.CheckWindow(now) == ""
}

// Repository provides lookup of coupons by code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
