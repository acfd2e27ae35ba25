package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/cache"
	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	repo "github.com/Additional-Code/emporia/internal/repository/order"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/emporia/service/order")

// Repository is the order persistence surface the service consumes.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*entity.Order, error)
	History(ctx context.Context, orderID int64) ([]*entity.OrderStatusHistory, error)
	Transition(ctx context.Context, orderID int64, to entity.OrderStatus, notes, changedBy string) (*entity.Order, error)
	Cancel(ctx context.Context, orderID int64, notes, changedBy string) (*entity.Order, error)
}

// Service encapsulates business logic around committed orders.
type Service struct {
	repo     Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(cfg config.Config, repository Repository, store cache.Store, logger *zap.Logger) *Service {
	return &Service{
		repo:     repository,
		cache:    store,
		cacheTTL: cfg.Cache.DefaultTTL,
		logger:   logger,
	}
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// List returns a user's orders, most recent first.
func (s *Service) List(ctx context.Context, userID int64, limit, offset int) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	orders, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// History returns the order's audit trail.
func (s *Service) History(ctx context.Context, orderID int64) ([]*entity.OrderStatusHistory, error) {
	rows, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to load order history", errorbank.WithCause(err))
	}
	return rows, nil
}

// Cancel cancels the order on the customer's behalf. Orders already shipped
// or in a terminal state cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	notes := "Cancelled by customer"
	if reason != "" {
		notes = fmt.Sprintf("Cancelled by customer: %s", reason)
	}

	order, err := s.repo.Cancel(ctx, orderID, notes, "customer")
	if err != nil {
		var invalid *entity.ErrInvalidTransition
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, errorbank.NotFound("order not found")
		case errors.As(err, &invalid):
			return nil, errorbank.Conflict(
				fmt.Sprintf("order in status %s cannot be cancelled", invalid.From),
				errorbank.WithCode(errorbank.CodeOrderNotCancellable))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancel failed")
			return nil, errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
		}
	}

	s.invalidateCache(ctx, orderID)
	return order, nil
}

// Transition moves the order along the fulfillment track on behalf of staff.
func (s *Service) Transition(ctx context.Context, orderID int64, to entity.OrderStatus, notes, changedBy string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.to_status", string(to)),
	))
	defer span.End()

	if !to.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown order status: %s", to))
	}
	if changedBy == "" {
		changedBy = "staff"
	}

	order, err := s.repo.Transition(ctx, orderID, to, notes, changedBy)
	if err != nil {
		var invalid *entity.ErrInvalidTransition
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, errorbank.NotFound("order not found")
		case errors.As(err, &invalid):
			return nil, errorbank.Conflict(invalid.Error(),
				errorbank.WithCode(errorbank.CodeInvalidTransition))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "transition failed")
			return nil, errorbank.Internal("failed to update order status", errorbank.WithCause(err))
		}
	}

	s.invalidateCache(ctx, orderID)
	return order, nil
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, cache.OrderKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.OrderKey(order.ID), bytes, s.cacheTTL); err != nil {
		if s.logger != nil {
			s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
		}
	}
}

func (s *Service) invalidateCache(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.OrderKey(orderID)); err != nil {
		if s.logger != nil {
			s.logger.Warn("orders cache invalidate failed", zap.Int64("id", orderID), zap.Error(err))
		}
	}
}
