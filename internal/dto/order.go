package dto

import (
	"time"

	"github.com/Additional-Code/emporia/internal/entity"
)

// AddressPayload is an address as submitted at checkout.
type AddressPayload struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// CheckoutRequest converts a cart into an order. BillingAddress may be
// omitted when it matches the shipping address.
type CheckoutRequest struct {
	CartID          int64           `json:"cart_id"`
	UserID          *int64          `json:"user_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ShippingAddress AddressPayload  `json:"shipping_address"`
	BillingAddress  *AddressPayload `json:"billing_address,omitempty"`
}

// OrderItemResponse is one immutable order line.
type OrderItemResponse struct {
	ID        int64             `json:"id"`
	ProductID int64             `json:"product_id"`
	Name      string            `json:"name"`
	SKU       string            `json:"sku"`
	Quantity  int               `json:"quantity"`
	Price     float64           `json:"price"`
	Total     float64           `json:"total"`
	Options   map[string]string `json:"options,omitempty"`
}

// AddressResponse is an address snapshot attached to an order.
type AddressResponse struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID            int64  `json:"id"`
	Number        string `json:"number"`
	Status        string `json:"status"`
	StatusLabel   string `json:"status_label"`
	PaymentStatus string `json:"payment_status"`

	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`

	Notes string `json:"notes,omitempty"`

	Items           []OrderItemResponse `json:"items,omitempty"`
	ShippingAddress *AddressResponse    `json:"shipping_address,omitempty"`
	BillingAddress  *AddressResponse    `json:"billing_address,omitempty"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HistoryEntryResponse is one row of an order's audit trail.
type HistoryEntryResponse struct {
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	ChangedBy string    `json:"changed_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CancelOrderRequest carries the optional customer-supplied reason.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TransitionRequest moves an order along the fulfillment track.
type TransitionRequest struct {
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	ChangedBy string `json:"changed_by,omitempty"`
}

// FromOrder maps an order entity onto the transport representation.
func FromOrder(order *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:            order.ID,
		Number:        order.Number,
		Status:        string(order.Status),
		StatusLabel:   entity.OrderStatusLabel(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		Tax:           order.Tax,
		Shipping:      order.Shipping,
		Total:         order.Total,
		Notes:         order.Notes,
		PaidAt:        order.PaidAt,
		ShippedAt:     order.ShippedAt,
		DeliveredAt:   order.DeliveredAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Total:     item.Total,
			Options:   item.Options,
		})
	}
	resp.ShippingAddress = fromAddress(order.ShippingAddress)
	resp.BillingAddress = fromAddress(order.BillingAddress)
	return resp
}

// FromHistory maps the audit trail onto the transport representation.
func FromHistory(rows []*entity.OrderStatusHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryEntryResponse{
			Status:    row.Status,
			Notes:     row.Notes,
			ChangedBy: row.ChangedBy,
			CreatedAt: row.CreatedAt,
		})
	}
	return out
}

// ToAddress maps a submitted address onto the entity snapshot.
func (a AddressPayload) ToAddress() entity.OrderAddress {
	return entity.OrderAddress{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func fromAddress(address *entity.OrderAddress) *AddressResponse {
	if address == nil {
		return nil
	}
	return &AddressResponse{
		Name:       address.Name,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		Province:   address.Province,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
	}
}
