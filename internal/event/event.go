package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	"github.com/Additional-Code/emporia/internal/messaging"
)

// Event types published on the order lifecycle topic.
const (
	TypeOrderCreated        = "order.created"
	TypeOrderPaid           = "order.paid"
	TypeOrderPaymentExpired = "order.payment_expired"
	TypeOrderShipped        = "order.shipped"
	TypeOrderDelivered      = "order.delivered"
)

// OrderEvent is the envelope published for every lifecycle milestone.
// Consumers dispatch on Type.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	Number     string    `json:"number"`
	Status     string    `json:"status"`
	Total      float64   `json:"total"`
	UserID     *int64    `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Emitter publishes order lifecycle events. Publishing is best effort: a
// broker failure is logged and never fails the business operation that
// triggered it.
type Emitter struct {
	publisher messaging.Client
	enabled   bool
	logger    *zap.Logger
}

// NewEmitter wires an Emitter from the messaging client and configuration.
func NewEmitter(cfg config.Config, publisher messaging.Client, logger *zap.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		enabled:   cfg.Messaging.Enabled,
		logger:    logger,
	}
}

// Emit publishes a lifecycle event for the order, keyed by order id so all
// events for one order land in the same partition.
func (e *Emitter) Emit(ctx context.Context, eventType string, order *entity.Order) {
	if e == nil || !e.enabled || e.publisher == nil || order == nil {
		return
	}

	payload, err := json.Marshal(OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		Number:     order.Number,
		Status:     string(order.Status),
		Total:      order.Total,
		UserID:     order.UserID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		if e.logger != nil {
			e.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		}
		return
	}

	key := []byte(fmt.Sprintf("order-%d", order.ID))
	if err := e.publisher.Publish(ctx, key, payload); err != nil {
		if e.logger != nil {
			e.logger.Error("publish order event",
				zap.String("type", eventType),
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}
}

// Module wires the event emitter.
var Module = fx.Provide(NewEmitter)
