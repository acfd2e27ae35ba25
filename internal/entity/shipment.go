package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Shipment tracks the single carrier shipment for an order. It is created
// pending by the shipping orchestrator and advanced by carrier responses and
// webhooks.
type Shipment struct {
	bun.BaseModel `bun:"table:shipments"`

	ID                int64          `bun:",pk,autoincrement"`
	OrderID           int64          `bun:"order_id"`
	Provider          string         `bun:"provider"`
	TrackingNumber    string         `bun:"tracking_number"`
	Status            ShippingStatus `bun:"status"`
	LabelURL          string         `bun:"label_url"`
	EstimatedDelivery *time.Time     `bun:"estimated_delivery"`
	ShippedAt         *time.Time     `bun:"shipped_at"`
	DeliveredAt       *time.Time     `bun:"delivered_at"`
	Metadata          map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero"`
}
