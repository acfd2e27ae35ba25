package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Cart is the pre-checkout shopping cart. Checkout consumes and clears it.
type Cart struct {
	bun.BaseModel `bun:"table:carts"`

	ID        int64       `bun:",pk,autoincrement"`
	UserID    *int64      `bun:"user_id"`
	CouponID  *int64      `bun:"coupon_id"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time   `bun:"updated_at,nullzero"`
	Items     []*CartItem `bun:"rel:has-many,join:id=cart_id"`
	Coupon    *Coupon     `bun:"rel:belongs-to,join:coupon_id=id"`
}

// CartItem is a live cart line pointing at the current product row.
type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	ID        int64             `bun:",pk,autoincrement"`
	CartID    int64             `bun:"cart_id"`
	ProductID int64             `bun:"product_id"`
	Quantity  int               `bun:"quantity"`
	Price     float64           `bun:"price"`
	Options   map[string]string `bun:"options,type:jsonb"`
	Product   *Product          `bun:"rel:belongs-to,join:product_id=id"`
}

// Subtotal sums the cart lines at their recorded prices.
func (c *Cart) Subtotal() float64 {
	var subtotal float64
	for _, item := range c.Items {
		subtotal += item.Price * float64(item.Quantity)
	}
	return subtotal
}
