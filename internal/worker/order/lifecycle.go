package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/event"
	"github.com/Additional-Code/emporia/internal/messaging"
	"github.com/Additional-Code/emporia/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/emporia/worker/order")

// Module registers order lifecycle worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler consumes order lifecycle events and triggers the
// customer-facing follow-ups for each milestone.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.lifecycle", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var evt event.OrderEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		span.SetAttributes(
			attribute.String("event.type", evt.Type),
			attribute.Int64("order.id", evt.OrderID),
		)

		fields := []zap.Field{
			zap.Int64("order_id", evt.OrderID),
			zap.String("number", evt.Number),
			zap.String("status", evt.Status),
		}

		switch evt.Type {
		case event.TypeOrderCreated:
			logger.Info("order created, queueing confirmation email", fields...)
		case event.TypeOrderPaid:
			logger.Info("order paid, queueing receipt and fulfillment notice", fields...)
		case event.TypeOrderPaymentExpired:
			logger.Info("order expired unpaid, queueing cancellation notice", fields...)
		case event.TypeOrderShipped:
			logger.Info("order shipped, queueing tracking email", fields...)
		case event.TypeOrderDelivered:
			logger.Info("order delivered, queueing review request", fields...)
		default:
			logger.Warn("unknown order event type", zap.String("type", evt.Type))
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
