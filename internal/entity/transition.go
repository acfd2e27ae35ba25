package entity

import (
	"fmt"
	"time"
)

// ErrInvalidTransition wraps a (from, to) pair missing from the transition
// table.
type ErrInvalidTransition struct {
	From OrderStatus
	To   OrderStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid order transition %s -> %s", e.From, e.To)
}

// StatusChange captures the persistent side effects of an order transition:
// the history row to append and the timestamp to stamp, if any.
type StatusChange struct {
	From      OrderStatus
	To        OrderStatus
	Notes     string
	ChangedBy string
	At        time.Time
}

// History materialises the audit row for the change.
func (c *StatusChange) History(orderID int64) *OrderStatusHistory {
	return &OrderStatusHistory{
		OrderID:   orderID,
		Status:    string(c.To),
		Notes:     c.Notes,
		ChangedBy: c.ChangedBy,
		CreatedAt: c.At,
	}
}

// Transition applies a status change to the in-memory order, enforcing the
// transition table and stamping milestone timestamps. The caller persists the
// mutated order together with the returned history row in one unit of work.
func Transition(o *Order, to OrderStatus, notes, changedBy string, now time.Time) (*StatusChange, error) {
	if !o.Status.CanTransitionTo(to) {
		return nil, &ErrInvalidTransition{From: o.Status, To: to}
	}

	change := &StatusChange{
		From:      o.Status,
		To:        to,
		Notes:     notes,
		ChangedBy: changedBy,
		At:        now,
	}

	o.Status = to
	o.UpdatedAt = now
	switch to {
	case OrderShipped:
		if o.ShippedAt == nil {
			at := now
			o.ShippedAt = &at
		}
	case OrderDelivered:
		if o.DeliveredAt == nil {
			at := now
			o.DeliveredAt = &at
		}
	}

	return change, nil
}

// PaymentOutcome classifies the effect of applying a gateway status onto the
// local aggregate. Only the HTTP boundary collapses outcomes into an ack.
type PaymentOutcome int

const (
	// PaymentApplied means the order was marked paid and downstream events
	// should fire.
	PaymentApplied PaymentOutcome = iota
	// PaymentAlreadyApplied means a replayed update changed nothing.
	PaymentAlreadyApplied
	// PaymentNeedsReview means the payment landed on a cancelled order; the
	// money was taken but fulfillment must not resume automatically.
	PaymentNeedsReview
	// PaymentFailureRecorded means the attempt failed; the order keeps its
	// fulfillment status.
	PaymentFailureRecorded
	// PaymentRecorded means only the attempt's status/metadata moved.
	PaymentRecorded
)

// PaymentReconciliation is the result of ApplyPaymentStatus: what happened
// plus the history row to append, when one is due.
type PaymentReconciliation struct {
	Outcome PaymentOutcome
	History *OrderStatusHistory
}

// ApplyPaymentStatus reconciles a gateway-reported status onto the order and
// the payment attempt, mutating both in memory. A transition into paid is
// never downgraded by later stale updates, and a payment arriving after the
// order was cancelled is flagged for manual review instead of un-cancelling
// the order.
func ApplyPaymentStatus(o *Order, p *Payment, status PaymentStatus, detail string, now time.Time) PaymentReconciliation {
	if status.Successful() {
		if o.PaymentStatus == PaymentPaid {
			return PaymentReconciliation{Outcome: PaymentAlreadyApplied}
		}

		p.Status = PaymentPaid
		p.UpdatedAt = now
		o.PaymentStatus = PaymentPaid
		paidAt := now
		o.PaidAt = &paidAt
		o.UpdatedAt = now

		if o.Status == OrderCancelled {
			return PaymentReconciliation{
				Outcome: PaymentNeedsReview,
				History: &OrderStatusHistory{
					OrderID:   o.ID,
					Status:    string(OrderCancelled),
					Notes:     "payment received after cancellation, manual review required",
					ChangedBy: "system",
					CreatedAt: now,
				},
			}
		}

		return PaymentReconciliation{
			Outcome: PaymentApplied,
			History: &OrderStatusHistory{
				OrderID:   o.ID,
				Status:    string(o.Status),
				Notes:     "payment confirmed",
				ChangedBy: "system",
				CreatedAt: now,
			},
		}
	}

	if status == PaymentFailed || status == PaymentRejected {
		// A paid order is never downgraded by a stale failed update; only the
		// attempt records what the gateway reported.
		if o.PaymentStatus == PaymentPaid {
			p.Status = status
			p.UpdatedAt = now
			return PaymentReconciliation{Outcome: PaymentRecorded}
		}

		notes := "payment failed"
		if detail != "" {
			notes = "payment failed: " + detail
		}
		p.Status = status
		p.UpdatedAt = now
		o.PaymentStatus = PaymentFailed
		o.UpdatedAt = now
		return PaymentReconciliation{
			Outcome: PaymentFailureRecorded,
			History: &OrderStatusHistory{
				OrderID:   o.ID,
				Status:    string(o.Status),
				Notes:     notes,
				ChangedBy: "system",
				CreatedAt: now,
			},
		}
	}

	p.Status = status
	p.UpdatedAt = now
	return PaymentReconciliation{Outcome: PaymentRecorded}
}

// ShipmentReconciliation is the result of ApplyShipmentStatus. CascadeFailed
// is set by the persistence layer when a delivered report could not advance
// the owning order; the shipment keeps its stamp and the order is flagged for
// review.
type ShipmentReconciliation struct {
	Changed        bool
	FirstDelivered bool
	CascadeFailed  bool
}

// ApplyShipmentStatus merges a carrier-reported status onto the shipment,
// stamping delivered_at exactly once. The caller cascades the owning order to
// delivered when FirstDelivered is set.
func ApplyShipmentStatus(s *Shipment, status ShippingStatus, now time.Time) ShipmentReconciliation {
	result := ShipmentReconciliation{}
	if s.Status != status {
		s.Status = status
		s.UpdatedAt = now
		result.Changed = true
	}
	if status == ShippingDelivered && s.DeliveredAt == nil {
		at := now
		s.DeliveredAt = &at
		result.FirstDelivered = true
	}
	return result
}
