package product

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-service/internal/domain/coupon"
)

var one = decimal.NewFromInt(1)

// Quote is the price breakdown of a product with an optional coupon.
type Quote struct {
	Original       int64
	Discounted     int64
	CouponDiscount int64
	Final          int64
}

// DiscountedPrice returns floor(price * (1 - discount_rate)).
func DiscountedPrice(p Product) int64 {
	return markdown(p.Price, p.DiscountRate)
}

// FinalPrice applies c, if any, on top of the discounted price. Amount
// coupons never take the price below zero.
func FinalPrice(p Product, c *coupon.Coupon) int64 {
	discounted := DiscountedPrice(p)
	if c == nil {
		return discounted
	}

	switch c.DiscountType {
	case coupon.DiscountRate:
		return markdown(discounted, c.DiscountValue)
	case coupon.DiscountAmount:
		if c.DiscountValue >= float64(discounted) {
			return 0
		}
		off := decimal.NewFromFloat(c.DiscountValue).IntPart()
		return max(0, discounted-off)
	default:
		panic(fmt.Sprintf("product: unknown coupon discount type %q", c.DiscountType))
	}
}

// FinalPriceMulti prices p with a list of coupons. Only one coupon applies
// per purchase: the first one wins and the rest are ignored.
func FinalPriceMulti(p Product, coupons []coupon.Coupon) int64 {
	if len(coupons) == 0 {
		return FinalPrice(p, nil)
	}
	return FinalPrice(p, &coupons[0])
}

// BulkPrice returns the total for qty units when an extra bulk rate is
// granted on top of the coupon-adjusted unit price.
func BulkPrice(p Product, c *coupon.Coupon, qty int64, bulkRate float64) int64 {
	return markdown(FinalPrice(p, c), bulkRate) * qty
}

// NewQuote computes the full price breakdown of p with an optional coupon.
func NewQuote(p Product, c *coupon.Coupon) Quote {
	discounted := DiscountedPrice(p)
	final := FinalPrice(p, c)
	return Quote{
		Original:       p.Price,
		Discounted:     discounted,
		CouponDiscount: discounted - final,
		Final:          final,
	}
}

// markdown returns floor(amount * (1 - rate)) for non-negative inputs.
func markdown(amount int64, rate float64) int64 {
	factor := one.Sub(decimal.NewFromFloat(rate))
	return decimal.NewFromInt(amount).Mul(factor).IntPart()
}
