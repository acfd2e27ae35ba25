package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Coupon discount kinds.
const (
	CouponPercentage = "percentage"
	CouponFixed      = "fixed"
)

// Coupon is a discount rule attachable to a cart.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID          int64      `bun:",pk,autoincrement"`
	Code        string     `bun:"code"`
	Kind        string     `bun:"kind"`
	Value       float64    `bun:"value"`
	MinSubtotal float64    `bun:"min_subtotal"`
	Active      bool       `bun:"active"`
	ExpiresAt   *time.Time `bun:"expires_at"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
