package payment

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
	"github.com/Additional-Code/emporia/internal/event"
	"github.com/Additional-Code/emporia/internal/gateway/mercadopago"
	orderrepo "github.com/Additional-Code/emporia/internal/repository/order"
	paymentrepo "github.com/Additional-Code/emporia/internal/repository/payment"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/emporia/service/payment")

// Orders is the order persistence surface payment reconciliation uses.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	ApplyPaymentUpdate(ctx context.Context, paymentID int64, status entity.PaymentStatus, detail string, metadata map[string]any) (entity.PaymentReconciliation, *entity.Order, error)
}

// Attempts is the payment attempt persistence surface.
type Attempts interface {
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id int64) (*entity.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*entity.Payment, error)
	GetLatestByOrderID(ctx context.Context, orderID int64) (*entity.Payment, error)
	SetExternalID(ctx context.Context, id int64, externalID string) error
	SetPreference(ctx context.Context, id int64, preferenceID string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Gateway is the payment gateway surface the service consumes.
type Gateway interface {
	CreatePreference(ctx context.Context, order *entity.Order, payer mercadopago.Payer) (*mercadopago.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.PaymentInfo, error)
	VerifyWebhookSignature(signatureHeader, requestID string, body []byte) bool
}

// PreferenceResult is what checkout hands back to the storefront so it can
// redirect the customer to the hosted payment page.
type PreferenceResult struct {
	PaymentID        int64
	PreferenceID     string
	InitPoint        string
	SandboxInitPoint string
}

// Notification is a parsed gateway webhook.
type Notification struct {
	Type   string
	DataID string
}

// WebhookResult reports what a notification did to the local aggregate.
type WebhookResult struct {
	Handled bool
	Outcome entity.PaymentOutcome
	OrderID int64
}

// Service orchestrates payment attempts against the external gateway.
type Service struct {
	orders   Orders
	attempts Attempts
	gateway  Gateway
	emitter  *event.Emitter
	logger   *zap.Logger

	gatewayName string
	currency    string
}

// NewService wires a payment Service.
func NewService(cfg config.Config, orders Orders, attempts Attempts, gateway Gateway, emitter *event.Emitter, logger *zap.Logger) *Service {
	return &Service{
		orders:      orders,
		attempts:    attempts,
		gateway:     gateway,
		emitter:     emitter,
		logger:      logger,
		gatewayName: cfg.Payment.Gateway,
		currency:    cfg.Store.Currency,
	}
}

// CreatePreference opens a payment attempt for a pending order and registers
// a hosted checkout session with the gateway. A gateway failure is recorded
// on the attempt before the error is surfaced.
func (s *Service) CreatePreference(ctx context.Context, orderID int64, payer mercadopago.Payer) (*PreferenceResult, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.CreatePreference", trace.WithAttributes(attribute.Int64("order.id", orderID)))
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

	if order.Status != entity.OrderPending || order.PaymentStatus != entity.PaymentPending {
		return nil, errorbank.Conflict("order is not awaiting payment",
			errorbank.WithCode(errorbank.CodeOrderAlreadyProcessed),
			errorbank.WithDetail("status", string(order.Status)),
			errorbank.WithDetail("payment_status", string(order.PaymentStatus)))
	}

	attempt := &entity.Payment{
		OrderID:  order.ID,
		Gateway:  s.gatewayName,
		Status:   entity.PaymentPending,
		Amount:   order.Total,
		Currency: s.currency,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt create failed")
		return nil, errorbank.Internal("failed to create payment attempt", errorbank.WithCause(err))
	}

	pref, err := s.gateway.CreatePreference(ctx, order, payer)
	if err != nil {
		if markErr := s.attempts.MarkFailed(ctx, attempt.ID, err.Error()); markErr != nil && s.logger != nil {
			s.logger.Error("mark payment failed", zap.Int64("payment_id", attempt.ID), zap.Error(markErr))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway call failed")
		if errors.Is(err, mercadopago.ErrNotConfigured) {
			return nil, errorbank.Unprocessable("payment gateway is not configured",
				errorbank.WithCode(errorbank.CodeGatewayError))
		}
		return nil, errorbank.Internal("payment gateway rejected the request",
			errorbank.WithCode(errorbank.CodeGatewayError),
			errorbank.WithCause(err))
	}

	if err := s.attempts.SetPreference(ctx, attempt.ID, pref.ID); err != nil && s.logger != nil {
		s.logger.Warn("store preference id failed", zap.Int64("payment_id", attempt.ID), zap.Error(err))
	}

	return &PreferenceResult{
		PaymentID:        attempt.ID,
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
	}, nil
}

// VerifyWebhook authenticates a gateway webhook. Anything short of a valid
// signature is rejected.
func (s *Service) VerifyWebhook(signatureHeader, requestID string, body []byte) error {
	if !s.gateway.VerifyWebhookSignature(signatureHeader, requestID, body) {
		return errorbank.Unauthorized("invalid webhook signature",
			errorbank.WithCode(errorbank.CodeInvalidSignature))
	}
	return nil
}

// ProcessNotification reconciles one gateway notification. Notification types
// other than payment are acknowledged without effect. The gateway is always
// re-queried for the payment's current state rather than trusting the
// notification payload.
func (s *Service) ProcessNotification(ctx context.Context, n Notification) (*WebhookResult, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ProcessNotification", trace.WithAttributes(attribute.String("notification.type", n.Type)))
	defer span.End()

	if n.Type != "payment" || n.DataID == "" {
		return &WebhookResult{Handled: false}, nil
	}

	info, err := s.gateway.GetPayment(ctx, n.DataID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway fetch failed")
		return nil, err
	}

	attempt, err := s.resolveAttempt(ctx, info)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt resolve failed")
		return nil, err
	}

	status := mercadopago.MapStatus(info.Status)
	metadata := map[string]any{
		"gateway_payment_id":    info.ID,
		"gateway_status":        info.Status,
		"gateway_status_detail": info.StatusDetail,
	}

	result, order, err := s.orders.ApplyPaymentUpdate(ctx, attempt.ID, status, info.StatusDetail, metadata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return nil, err
	}

	switch result.Outcome {
	case entity.PaymentApplied:
		s.emitter.Emit(ctx, event.TypeOrderPaid, order)
	case entity.PaymentNeedsReview:
		if s.logger != nil {
			s.logger.Warn("payment received after cancellation",
				zap.Int64("order_id", order.ID),
				zap.String("gateway_payment_id", info.ID))
		}
	}

	return &WebhookResult{Handled: true, Outcome: result.Outcome, OrderID: order.ID}, nil
}

// GetStatus returns the attempt's local state. With sync set, the gateway is
// queried first and any status movement reconciled before answering.
func (s *Service) GetStatus(ctx context.Context, paymentID int64, sync bool) (*entity.Payment, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.GetStatus", trace.WithAttributes(attribute.Int64("payment.id", paymentID)))
	defer span.End()

	attempt, err := s.attempts.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, paymentrepo.ErrNotFound) {
			return nil, errorbank.NotFound("payment not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt load failed")
		return nil, errorbank.Internal("failed to load payment", errorbank.WithCause(err))
	}

	if !sync || attempt.ExternalID == "" {
		return attempt, nil
	}

	info, err := s.gateway.GetPayment(ctx, attempt.ExternalID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("gateway status refresh failed",
				zap.Int64("payment_id", paymentID),
				zap.Error(err))
		}
		return attempt, nil
	}

	status := mercadopago.MapStatus(info.Status)
	if _, _, err := s.orders.ApplyPaymentUpdate(ctx, attempt.ID, status, info.StatusDetail, map[string]any{
		"gateway_status":        info.Status,
		"gateway_status_detail": info.StatusDetail,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return nil, errorbank.Internal("failed to reconcile payment", errorbank.WithCause(err))
	}

	refreshed, err := s.attempts.GetByID(ctx, paymentID)
	if err != nil {
		return attempt, nil
	}
	return refreshed, nil
}

// resolveAttempt locates the local attempt a gateway payment belongs to. The
// first notification for an attempt arrives before the gateway payment id was
// bound, so the order's external reference is the fallback.
func (s *Service) resolveAttempt(ctx context.Context, info *mercadopago.PaymentInfo) (*entity.Payment, error) {
	attempt, err := s.attempts.GetByExternalID(ctx, info.ID)
	if err == nil {
		return attempt, nil
	}
	if !errors.Is(err, paymentrepo.ErrNotFound) {
		return nil, err
	}

	orderID, parseErr := strconv.ParseInt(info.ExternalReference, 10, 64)
	if parseErr != nil {
		return nil, errorbank.BadRequest("notification carries no usable order reference",
			errorbank.WithCause(parseErr))
	}

	attempt, err = s.attempts.GetLatestByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.attempts.SetExternalID(ctx, attempt.ID, info.ID); err != nil {
		return nil, err
	}
	attempt.ExternalID = info.ID
	return attempt, nil
}
