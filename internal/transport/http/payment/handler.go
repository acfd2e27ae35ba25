package payment

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/dto"
	"github.com/Additional-Code/emporia/internal/gateway/mercadopago"
	"github.com/Additional-Code/emporia/internal/presentation/http/response"
	service "github.com/Additional-Code/emporia/internal/service/payment"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/emporia/transport/http/payment")

// Handler exposes payment endpoints over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler constructs a payment Handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/payments")
	g.POST("/preference", h.createPreference)
	g.GET("/:id", h.getStatus)
	e.POST("/webhooks/payments", h.webhook)
}

func (h *Handler) createPreference(c echo.Context) error {
	b := response.New(c)

	var payload dto.PreferenceRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.OrderID <= 0 {
		return b.WithError(errorbank.BadRequest("order_id is required")).Build()
	}
	if payload.PayerEmail == "" {
		return b.WithError(errorbank.BadRequest("payer_email is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.createPreference", trace.WithAttributes(attribute.Int64("order.id", payload.OrderID)))
	defer span.End()

	result, err := h.svc.CreatePreference(ctx, payload.OrderID, mercadopago.Payer{
		Name:  payload.PayerName,
		Email: payload.PayerEmail,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.PreferenceResponse{
		PaymentID:        result.PaymentID,
		PreferenceID:     result.PreferenceID,
		InitPoint:        result.InitPoint,
		SandboxInitPoint: result.SandboxInitPoint,
	}).Build()
}

func (h *Handler) getStatus(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}
	sync, _ := strconv.ParseBool(c.QueryParam("sync"))

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.getStatus", trace.WithAttributes(attribute.Int64("payment.id", id)))
	defer span.End()

	payment, err := h.svc.GetStatus(ctx, id, sync)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromPayment(payment)).Build()
}

// webhook acknowledges gateway notifications. Only an invalid signature is a
// non-200 answer; processing failures after authentication are logged and
// acked so the gateway retry schedule, not the response code, drives retries.
func (h *Handler) webhook(c echo.Context) error {
	b := response.New(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return b.WithError(errorbank.BadRequest("unreadable body", errorbank.WithCause(err))).Build()
	}

	signature := c.Request().Header.Get("x-signature")
	requestID := c.Request().Header.Get("x-request-id")
	if err := h.svc.VerifyWebhook(signature, requestID, body); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.webhook")
	defer span.End()

	var payload dto.PaymentWebhookRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("unparseable payment webhook", zap.Error(err))
		return b.WithData(map[string]string{"status": "ignored"}).Build()
	}

	result, err := h.svc.ProcessNotification(ctx, service.Notification{
		Type:   payload.Type,
		DataID: payload.Data.ID,
	})
	if err != nil {
		h.logger.Error("payment webhook processing failed",
			zap.String("type", payload.Type),
			zap.String("data_id", payload.Data.ID),
			zap.Error(err))
		return b.WithData(map[string]string{"status": "accepted"}).Build()
	}

	span.SetAttributes(attribute.Bool("webhook.handled", result.Handled))
	return b.WithData(map[string]string{"status": "ok"}).Build()
}
