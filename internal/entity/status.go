package entity

// OrderStatus tracks fulfillment progress of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// orderTransitions is the allowed-edge table. Cancelled and refunded are
// terminal; a missing entry means no outgoing transitions.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderRefunded},
	OrderCancelled:  {},
	OrderRefunded:   {},
}

// CanTransitionTo reports whether the edge (s, target) exists in the
// transition table.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// PaymentStatus tracks the payment side of an order independently of
// fulfillment.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentPaid              PaymentStatus = "paid"
	PaymentApproved          PaymentStatus = "approved"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRejected          PaymentStatus = "rejected"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Successful reports whether the payment completed in the buyer's favor.
func (s PaymentStatus) Successful() bool {
	return s == PaymentPaid || s == PaymentApproved
}

// Final reports whether the payment failed with no further gateway updates
// expected.
func (s PaymentStatus) Final() bool {
	return s == PaymentFailed || s == PaymentRejected || s == PaymentCancelled
}

// ShippingStatus tracks a shipment through the carrier pipeline.
type ShippingStatus string

const (
	ShippingPending        ShippingStatus = "pending"
	ShippingProcessing     ShippingStatus = "processing"
	ShippingShipped        ShippingStatus = "shipped"
	ShippingInTransit      ShippingStatus = "in_transit"
	ShippingOutForDelivery ShippingStatus = "out_for_delivery"
	ShippingDelivered      ShippingStatus = "delivered"
	ShippingFailed         ShippingStatus = "failed"
	ShippingReturned       ShippingStatus = "returned"
)
