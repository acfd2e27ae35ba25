package dto

import (
	"time"

	"github.com/Additional-Code/emporia/internal/entity"
)

// PreferenceRequest opens a hosted payment session for an order.
type PreferenceRequest struct {
	OrderID    int64  `json:"order_id"`
	PayerName  string `json:"payer_name,omitempty"`
	PayerEmail string `json:"payer_email"`
}

// PreferenceResponse carries the redirect target for the hosted payment page.
type PreferenceResponse struct {
	PaymentID        int64  `json:"payment_id"`
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

// PaymentResponse is a payment attempt as exposed via transport layers.
type PaymentResponse struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	Gateway     string    `json:"gateway"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	ExternalID  string    `json:"external_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PaymentWebhookRequest is the gateway's notification body.
type PaymentWebhookRequest struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// FromPayment maps a payment attempt onto the transport representation.
func FromPayment(payment *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          payment.ID,
		OrderID:     payment.OrderID,
		Gateway:     payment.Gateway,
		Status:      string(payment.Status),
		StatusLabel: entity.PaymentStatusLabel(payment.Status),
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		ExternalID:  payment.ExternalID,
		CreatedAt:   payment.CreatedAt,
		UpdatedAt:   payment.UpdatedAt,
	}
}
