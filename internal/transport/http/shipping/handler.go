package shipping

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
	"github.com/Additional-Code/emporia/internal/presentation/http/response"
	service "github.com/Additional-Code/emporia/internal/service/shipping"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/emporia/transport/http/shipping")

// Handler exposes shipping endpoints over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler constructs a shipping Handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/shipping/quote", h.quote)
	e.POST("/orders/:id/shipment", h.createShipment)
	e.GET("/orders/:id/shipment", h.getShipment)
	e.POST("/webhooks/shipping", h.webhook)
}

func (h *Handler) quote(c echo.Context) error {
	b := response.New(c)

	postalCode := c.QueryParam("postal_code")
	weight, _ := strconv.ParseFloat(c.QueryParam("weight_kg"), 64)
	subtotal, _ := strconv.ParseFloat(c.QueryParam("subtotal"), 64)

	ctx, span := httpTracer.Start(c.Request().Context(), "shipping.quote", trace.WithAttributes(attribute.String("shipping.postal_code", postalCode)))
	defer span.End()

	quote, err := h.svc.Quote(ctx, postalCode, weight, subtotal)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.QuoteResponse{
		Provider:              quote.Provider,
		Amount:                quote.Amount,
		Currency:              quote.Currency,
		EstimatedDays:         quote.EstimatedDays,
		FreeShippingThreshold: quote.FreeShippingThreshold,
	}).Build()
}

func (h *Handler) createShipment(c echo.Context) error {
	b := response.New(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload dto.CreateShipmentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "shipping.createShipment", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	shipment, err := h.svc.CreateShipment(ctx, orderID, payload.WeightKg)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromShipment(shipment)).Build()
}

func (h *Handler) getShipment(c echo.Context) error {
	b := response.New(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "shipping.getShipment", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	shipment, err := h.svc.GetByOrder(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromShipment(shipment)).Build()
}

// webhook acknowledges carrier status updates. Only an invalid signature is a
// non-200 answer; failures after authentication are logged and acked.
func (h *Handler) webhook(c echo.Context) error {
	b := response.New(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return b.WithError(errorbank.BadRequest("unreadable body", errorbank.WithCause(err))).Build()
	}

	signature := c.Request().Header.Get("x-andreani-signature")
	if err := h.svc.VerifyWebhook(signature, body); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "shipping.webhook")
	defer span.End()

	var payload dto.ShippingWebhookRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("unparseable shipping webhook", zap.Error(err))
		return b.WithData(map[string]string{"status": "ignored"}).Build()
	}

	var raw map[string]any
	_ = json.Unmarshal(body, &raw)

	result, err := h.svc.ProcessUpdate(ctx, service.CarrierUpdate{
		TrackingNumber: payload.TrackingNumber,
		RawStatus:      payload.Status,
		Raw:            raw,
	})
	if err != nil {
		h.logger.Error("shipping webhook processing failed",
			zap.String("tracking_number", payload.TrackingNumber),
			zap.Error(err))
		return b.WithData(map[string]string{"status": "accepted"}).Build()
	}

	span.SetAttributes(attribute.Bool("webhook.handled", result.Handled))
	return b.WithData(map[string]string{"status": "ok"}).Build()
}
