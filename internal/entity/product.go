package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Product is the slice of the catalog the order core needs: live price,
// weight, and stock. Catalog management itself lives elsewhere.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID        int64     `bun:",pk,autoincrement"`
	Name      string    `bun:"name"`
	SKU       string    `bun:"sku"`
	Price     float64   `bun:"price"`
	WeightKg  float64   `bun:"weight_kg"`
	Stock     int       `bun:"stock"`
	Active    bool      `bun:"active"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}
