package pricing

import (
	"math"
	"time"

	"github.com/Additional-Code/emporia/internal/entity"
)

// CouponDiscounter evaluates the coupon attached to a cart. An absent,
// inactive, expired, or under-minimum coupon yields no discount.
type CouponDiscounter struct {
	now func() time.Time
}

// NewCouponDiscounter builds the default coupon-based Discounter.
func NewCouponDiscounter() *CouponDiscounter {
	return &CouponDiscounter{now: time.Now}
}

// Discount implements Discounter.
func (d *CouponDiscounter) Discount(cart *entity.Cart) float64 {
	if cart == nil || cart.Coupon == nil {
		return 0
	}
	coupon := cart.Coupon
	if !coupon.Active {
		return 0
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(d.now()) {
		return 0
	}

	subtotal := cart.Subtotal()
	if subtotal < coupon.MinSubtotal {
		return 0
	}

	switch coupon.Kind {
	case entity.CouponPercentage:
		return subtotal * coupon.Value / 100
	case entity.CouponFixed:
		return math.Min(coupon.Value, subtotal)
	default:
		return 0
	}
}
