package order

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/emporia/internal/dto"
	"github.com/Additional-Code/emporia/internal/entity"
	"github.com/Additional-Code/emporia/internal/presentation/http/response"
	service "github.com/Additional-Code/emporia/internal/service/order"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/emporia/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.GET("/:id/history", h.history)
	g.POST("/:id/cancel", h.cancel)
	g.POST("/:id/status", h.transition)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	userID, err := strconv.ParseInt(c.QueryParam("user_id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("user_id is required", errorbank.WithCause(err))).Build()
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	orders, err := h.svc.List(ctx, userID, limit, offset)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, dto.FromOrder(order))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.history", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	rows, err := h.svc.History(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromHistory(rows)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload dto.CancelOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, id, payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) transition(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload dto.TransitionRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.to_status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.Transition(ctx, id, entity.OrderStatus(payload.Status), payload.Notes, payload.ChangedBy)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}
