package shipping

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/carrier/andreani"
	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	"github.com/Additional-Code/emporia/internal/event"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	shipmentrepo "github.com/Additional-Code/emporia/internal/repository/shipment"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/emporia/service/shipping")

// FallbackProvider labels quotes priced locally when the carrier is
// unreachable or unconfigured.
const FallbackProvider = "standard"

// Orders is the order persistence surface shipping uses.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Shipments is the shipment persistence surface.
type Shipments interface {
	Create(ctx context.Context, shipment *entity.Shipment) error
	GetByOrderID(ctx context.Context, orderID int64) (*entity.Shipment, error)
	MarkShipped(ctx context.Context, shipmentID int64, trackingNumber, labelURL string, eta *time.Time) (*entity.Shipment, error)
	MarkFailed(ctx context.Context, shipmentID int64, reason string) error
	ApplyCarrierUpdate(ctx context.Context, trackingNumber string, status entity.ShippingStatus, raw map[string]any) (entity.ShipmentReconciliation, *entity.Shipment, error)
}

// Carrier is the external carrier surface the service consumes.
type Carrier interface {
	Quote(ctx context.Context, req andreani.QuoteRequest) (*andreani.Quote, error)
	CreateShipment(ctx context.Context, req andreani.ShipmentRequest) (*andreani.ShipmentResponse, error)
	VerifyWebhookSignature(signature string, body []byte) bool
}

// QuoteResult is a priced shipping option for the storefront.
type QuoteResult struct {
	Provider              string
	Amount                float64
	Currency              string
	EstimatedDays         int
	FreeShippingThreshold float64
}

// CarrierUpdate is a parsed carrier webhook.
type CarrierUpdate struct {
	TrackingNumber string
	RawStatus      string
	Raw            map[string]any
}

// WebhookResult reports what a carrier update did to the shipment.
type WebhookResult struct {
	Handled   bool
	Status    entity.ShippingStatus
	Delivered bool
	OrderID   int64
}

// Service orchestrates shipments against the external carrier.
type Service struct {
	orders    Orders
	shipments Shipments
	carrier   Carrier
	emitter   *event.Emitter
	logger    *zap.Logger

	cfg      config.Shipping
	currency string
	freeAt   float64
}

// NewService wires a shipping Service.
func NewService(cfg config.Config, orders Orders, shipments Shipments, carrier Carrier, emitter *event.Emitter, logger *zap.Logger) *Service {
	return &Service{
		orders:    orders,
		shipments: shipments,
		carrier:   carrier,
		emitter:   emitter,
		logger:    logger,
		cfg:       cfg.Shipping,
		currency:  cfg.Store.Currency,
		freeAt:    cfg.Store.FreeShippingThreshold,
	}
}

// Quote prices shipping for a destination. Subtotals at or above the
// free-shipping threshold ship free; otherwise the carrier is asked, and a
// locally priced fallback answers when the carrier cannot.
func (s *Service) Quote(ctx context.Context, postalCode string, weightKg, subtotal float64) (*QuoteResult, error) {
	ctx, span := serviceTracer.Start(ctx, "ShippingService.Quote", trace.WithAttributes(attribute.String("shipping.postal_code", postalCode)))
	defer span.End()

	if postalCode == "" {
		return nil, errorbank.BadRequest("postal code is required")
	}

	result := &QuoteResult{
		Provider:              s.cfg.Provider,
		Currency:              s.currency,
		FreeShippingThreshold: s.freeAt,
	}

	if s.freeAt > 0 && subtotal >= s.freeAt {
		result.Amount = 0
		return result, nil
	}

	quote, err := s.carrier.Quote(ctx, andreani.QuoteRequest{
		OriginPostalCode:      s.cfg.OriginPostalCode,
		DestinationPostalCode: postalCode,
		WeightKg:              weightKg,
		DeclaredValue:         subtotal,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("carrier quote failed, using fallback rate",
				zap.String("postal_code", postalCode),
				zap.Error(err))
		}
		result.Provider = FallbackProvider
		result.Amount = s.cfg.BaseCost + s.cfg.CostPerKg*weightKg
		return result, nil
	}

	result.Amount = quote.Amount
	if quote.Currency != "" {
		result.Currency = quote.Currency
	}
	result.EstimatedDays = quote.EstimatedDays
	return result, nil
}

// CreateShipment hands a processing order to the carrier. The shipment row is
// created first so a carrier failure leaves a failed marker behind; carrier
// acceptance transitions the order to shipped.
func (s *Service) CreateShipment(ctx context.Context, orderID int64, weightKg float64) (*entity.Shipment, error) {
	ctx, span := serviceTracer.Start(ctx, "ShippingService.CreateShipment", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "order load failed")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if !order.Status.CanTransitionTo(entity.OrderShipped) {
		return nil, errorbank.Conflict("order is not ready to ship",
			errorbank.WithCode(errorbank.CodeInvalidTransition),
			errorbank.WithDetail("status", string(order.Status)))
	}
	if order.ShippingAddress == nil {
		return nil, errorbank.Unprocessable("order has no shipping address")
	}

	if existing, err := s.shipments.GetByOrderID(ctx, orderID); err == nil {
		return nil, errorbank.Conflict("shipment already exists for order",
			errorbank.WithDetail("shipment_id", existing.ID))
	} else if !errors.Is(err, shipmentrepo.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shipment lookup failed")
		return nil, errorbank.Internal("failed to check existing shipment", errorbank.WithCause(err))
	}

	shipment := &entity.Shipment{
		OrderID:  order.ID,
		Provider: s.cfg.Provider,
		Status:   entity.ShippingPending,
	}
	if err := s.shipments.Create(ctx, shipment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shipment create failed")
		return nil, errorbank.Internal("failed to create shipment", errorbank.WithCause(err))
	}

	address := order.ShippingAddress
	resp, err := s.carrier.CreateShipment(ctx, andreani.ShipmentRequest{
		OrderNumber:           order.Number,
		OriginPostalCode:      s.cfg.OriginPostalCode,
		DestinationPostalCode: address.PostalCode,
		DestinationAddress:    address.Line1,
		RecipientName:         address.Name,
		RecipientPhone:        address.Phone,
		WeightKg:              weightKg,
		DeclaredValue:         order.Total,
	})
	if err != nil {
		if markErr := s.shipments.MarkFailed(ctx, shipment.ID, err.Error()); markErr != nil && s.logger != nil {
			s.logger.Error("mark shipment failed", zap.Int64("shipment_id", shipment.ID), zap.Error(markErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "carrier call failed")
		return nil, errorbank.Internal("carrier rejected the shipment",
			errorbank.WithCode(errorbank.CodeProviderError),
			errorbank.WithCause(err))
	}

	shipped, err := s.shipments.MarkShipped(ctx, shipment.ID, resp.TrackingNumber, resp.LabelURL, resp.EstimatedDelivery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark shipped failed")
		return nil, errorbank.Internal("failed to record carrier acceptance", errorbank.WithCause(err))
	}

	order.Status = entity.OrderShipped
	s.emitter.Emit(ctx, event.TypeOrderShipped, order)

	return shipped, nil
}

// GetByOrder returns the shipment for an order.
func (s *Service) GetByOrder(ctx context.Context, orderID int64) (*entity.Shipment, error) {
	shipment, err := s.shipments.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, shipmentrepo.ErrNotFound) {
			return nil, errorbank.NotFound("shipment not found")
		}
		return nil, errorbank.Internal("failed to load shipment", errorbank.WithCause(err))
	}
	return shipment, nil
}

// VerifyWebhook authenticates a carrier webhook.
func (s *Service) VerifyWebhook(signature string, body []byte) error {
	if !s.carrier.VerifyWebhookSignature(signature, body) {
		return errorbank.Unauthorized("invalid webhook signature",
			errorbank.WithCode(errorbank.CodeInvalidSignature))
	}
	return nil
}

// ProcessUpdate reconciles one carrier status update. The first delivered
// report cascades the order to delivered and fires the lifecycle event.
func (s *Service) ProcessUpdate(ctx context.Context, update CarrierUpdate) (*WebhookResult, error) {
	ctx, span := serviceTracer.Start(ctx, "ShippingService.ProcessUpdate", trace.WithAttributes(
		attribute.String("shipment.tracking_number", update.TrackingNumber),
		attribute.String("shipment.raw_status", update.RawStatus),
	))
	defer span.End()

	if update.TrackingNumber == "" {
		return &WebhookResult{Handled: false}, nil
	}

	status := andreani.MapStatus(update.RawStatus)
	result, shipment, err := s.shipments.ApplyCarrierUpdate(ctx, update.TrackingNumber, status, update.Raw)
	if err != nil {
		if errors.Is(err, shipmentrepo.ErrNotFound) {
			if s.logger != nil {
				s.logger.Warn("carrier update for unknown tracking number",
					zap.String("tracking_number", update.TrackingNumber))
			}
			return &WebhookResult{Handled: false}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return nil, err
	}

	out := &WebhookResult{
		Handled:   true,
		Status:    shipment.Status,
		Delivered: result.FirstDelivered && !result.CascadeFailed,
		OrderID:   shipment.OrderID,
	}

	if result.FirstDelivered {
		if result.CascadeFailed {
			if s.logger != nil {
				s.logger.Warn("delivered report could not advance the order",
					zap.Int64("order_id", shipment.OrderID),
					zap.String("tracking_number", update.TrackingNumber))
			}
			return out, nil
		}
		if order, err := s.orders.GetByID(ctx, shipment.OrderID); err == nil {
			s.emitter.Emit(ctx, event.TypeOrderDelivered, order)
		}
	}

	return out, nil
}
