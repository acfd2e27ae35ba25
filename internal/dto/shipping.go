package dto

import (
	"time"

	"github.com/Additional-Code/emporia/internal/entity"
)

// QuoteResponse is a priced shipping option.
type QuoteResponse struct {
	Provider              string  `json:"provider"`
	Amount                float64 `json:"amount"`
	Currency              string  `json:"currency"`
	EstimatedDays         int     `json:"estimated_days,omitempty"`
	FreeShippingThreshold float64 `json:"free_shipping_threshold"`
}

// CreateShipmentRequest hands an order to the carrier.
type CreateShipmentRequest struct {
	WeightKg float64 `json:"weight_kg"`
}

// ShipmentResponse is a shipment as exposed via transport layers.
type ShipmentResponse struct {
	ID                int64      `json:"id"`
	OrderID           int64      `json:"order_id"`
	Provider          string     `json:"provider"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	Status            string     `json:"status"`
	StatusLabel       string     `json:"status_label"`
	LabelURL          string     `json:"label_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ShippingWebhookRequest is the carrier's status notification body.
type ShippingWebhookRequest struct {
	TrackingNumber string `json:"numeroDeTracking"`
	Status         string `json:"estado"`
}

// FromShipment maps a shipment onto the transport representation.
func FromShipment(shipment *entity.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:                shipment.ID,
		OrderID:           shipment.OrderID,
		Provider:          shipment.Provider,
		TrackingNumber:    shipment.TrackingNumber,
		Status:            string(shipment.Status),
		StatusLabel:       entity.ShippingStatusLabel(shipment.Status),
		LabelURL:          shipment.LabelURL,
		EstimatedDelivery: shipment.EstimatedDelivery,
		ShippedAt:         shipment.ShippedAt,
		DeliveredAt:       shipment.DeliveredAt,
		CreatedAt:         shipment.CreatedAt,
	}
}
