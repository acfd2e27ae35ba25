package expiration

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	"github.com/Additional-Code/emporia/internal/event"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/emporia/service/expiration")

// Orders is the order persistence surface the sweep uses.
type Orders interface {
	SelectExpiredCandidates(ctx context.Context, cutoff time.Time) ([]int64, error)
	ExpireUnpaid(ctx context.Context, orderID int64, cutoff time.Time, notes string) (bool, error)
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Service cancels orders whose payment window elapsed. Each order is handled
// in its own short transaction so one failure never blocks the rest of the
// sweep.
type Service struct {
	orders  Orders
	emitter *event.Emitter
	logger  *zap.Logger
	window  time.Duration
}

// NewService wires an expiration Service.
func NewService(cfg config.Config, orders Orders, emitter *event.Emitter, logger *zap.Logger) *Service {
	return &Service{
		orders:  orders,
		emitter: emitter,
		logger:  logger,
		window:  cfg.Orders.ExpirationWindow,
	}
}

// Sweep expires every order still unpaid past the configured expiration
// window and returns how many were cancelled.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.SweepWithin(ctx, s.window)
}

// SweepWithin runs the sweep against an explicit window. Eligibility is
// re-checked under lock per order, so an order paid between selection and
// processing is left alone.
func (s *Service) SweepWithin(ctx context.Context, window time.Duration) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "ExpirationService.Sweep")
	defer span.End()

	if window <= 0 {
		window = s.window
	}
	cutoff := time.Now().UTC().Add(-window)
	notes := fmt.Sprintf("payment not received within %s", window)

	ids, err := s.orders.SelectExpiredCandidates(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate select failed")
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		applied, err := s.orders.ExpireUnpaid(ctx, id, cutoff, notes)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("expire unpaid order failed", zap.Int64("order_id", id), zap.Error(err))
			}
			continue
		}
		if !applied {
			continue
		}

		expired++
		if order, err := s.orders.GetByID(ctx, id); err == nil {
			s.emitter.Emit(ctx, event.TypeOrderPaymentExpired, order)
		}
	}

	span.SetAttributes(
		attribute.Int("orders.candidates", len(ids)),
		attribute.Int("orders.expired", expired),
	)
	if s.logger != nil && len(ids) > 0 {
		s.logger.Info("unpaid order sweep finished",
			zap.Int("candidates", len(ids)),
			zap.Int("expired", expired))
	}
	return expired, nil
}
