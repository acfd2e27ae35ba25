package entity

// Human-readable labels for admin and notification surfaces. Kept apart from
// the status types so the domain values stay plain wire strings.

var orderStatusLabels = map[OrderStatus]string{
	OrderPending:    "Pending",
	OrderConfirmed:  "Confirmed",
	OrderProcessing: "Processing",
	OrderShipped:    "Shipped",
	OrderDelivered:  "Delivered",
	OrderCancelled:  "Cancelled",
	OrderRefunded:   "Refunded",
}

var paymentStatusLabels = map[PaymentStatus]string{
	PaymentPending:           "Pending",
	PaymentProcessing:        "Processing",
	PaymentPaid:              "Paid",
	PaymentApproved:          "Approved",
	PaymentFailed:            "Failed",
	PaymentRejected:          "Rejected",
	PaymentCancelled:         "Cancelled",
	PaymentRefunded:          "Refunded",
	PaymentPartiallyRefunded: "Partially refunded",
}

var shippingStatusLabels = map[ShippingStatus]string{
	ShippingPending:        "Pending",
	ShippingProcessing:     "Processing",
	ShippingShipped:        "Shipped",
	ShippingInTransit:      "In transit",
	ShippingOutForDelivery: "Out for delivery",
	ShippingDelivered:      "Delivered",
	ShippingFailed:         "Failed",
	ShippingReturned:       "Returned",
}

// OrderStatusLabel formats s for display; unknown values pass through.
func OrderStatusLabel(s OrderStatus) string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// PaymentStatusLabel formats s for display; unknown values pass through.
func PaymentStatusLabel(s PaymentStatus) string {
	if label, ok := paymentStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ShippingStatusLabel formats s for display; unknown values pass through.
func ShippingStatusLabel(s ShippingStatus) string {
	if label, ok := shippingStatusLabels[s]; ok {
		return label
	}
	return string(s)
}
