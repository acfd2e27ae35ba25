package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Payment records one gateway payment attempt for an order. Multiple rows may
// exist per order across retries; the order's own payment_status column is the
// authoritative current status.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID         int64          `bun:",pk,autoincrement"`
	OrderID    int64          `bun:"order_id"`
	Gateway    string         `bun:"gateway"`
	Status     PaymentStatus  `bun:"status"`
	Amount     float64        `bun:"amount"`
	Currency   string         `bun:"currency"`
	ExternalID string         `bun:"external_id"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero"`
}
