package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order represents a committed purchase stored in the relational database.
// It owns its item snapshots, address snapshots, and status history; its two
// status tracks (fulfillment, payment) advance independently.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            int64         `bun:",pk,autoincrement"`
	Number        string        `bun:"number"`
	UserID        *int64        `bun:"user_id"`
	Status        OrderStatus   `bun:"status"`
	PaymentStatus PaymentStatus `bun:"payment_status"`

	Subtotal float64 `bun:"subtotal"`
	Discount float64 `bun:"discount"`
	Tax      float64 `bun:"tax"`
	Shipping float64 `bun:"shipping"`
	Total    float64 `bun:"total"`

	Notes             string `bun:"notes"`
	ShippingAddressID int64  `bun:"shipping_address_id"`
	BillingAddressID  int64  `bun:"billing_address_id"`

	PaidAt      *time.Time `bun:"paid_at"`
	ShippedAt   *time.Time `bun:"shipped_at"`
	DeliveredAt *time.Time `bun:"delivered_at"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`

	Items           []*OrderItem  `bun:"rel:has-many,join:id=order_id"`
	ShippingAddress *OrderAddress `bun:"rel:belongs-to,join:shipping_address_id=id"`
	BillingAddress  *OrderAddress `bun:"rel:belongs-to,join:billing_address_id=id"`
}

// OrderItem is an immutable line-item snapshot captured at checkout. It is
// deliberately decoupled from the live product row so later price or catalog
// changes never rewrite order history.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        int64             `bun:",pk,autoincrement"`
	OrderID   int64             `bun:"order_id"`
	ProductID int64             `bun:"product_id"`
	Name      string            `bun:"name"`
	SKU       string            `bun:"sku"`
	Quantity  int               `bun:"quantity"`
	Price     float64           `bun:"price"`
	Total     float64           `bun:"total"`
	Options   map[string]string `bun:"options,type:jsonb"`
	CreatedAt time.Time         `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// OrderAddress is an immutable address snapshot owned by exactly one order.
type OrderAddress struct {
	bun.BaseModel `bun:"table:order_addresses"`

	ID         int64     `bun:",pk,autoincrement"`
	Name       string    `bun:"name"`
	Line1      string    `bun:"line1"`
	Line2      string    `bun:"line2"`
	City       string    `bun:"city"`
	Province   string    `bun:"province"`
	PostalCode string    `bun:"postal_code"`
	Country    string    `bun:"country"`
	Phone      string    `bun:"phone"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// OrderStatusHistory is the append-only audit trail of order transitions.
// Rows are never mutated or deleted.
type OrderStatusHistory struct {
	bun.BaseModel `bun:"table:order_status_histories"`

	ID        int64     `bun:",pk,autoincrement"`
	OrderID   int64     `bun:"order_id"`
	Status    string    `bun:"status"`
	Notes     string    `bun:"notes"`
	ChangedBy string    `bun:"changed_by"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
