package checkout

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/emporia/internal/dto"
	"github.com/Additional-Code/emporia/internal/presentation/http/response"
	service "github.com/Additional-Code/emporia/internal/service/checkout"
	"github.com/Additional-Code/emporia/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/emporia/transport/http/checkout")

// Handler exposes the checkout endpoint over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a checkout Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/checkout", h.checkout)
}

func (h *Handler) checkout(c echo.Context) error {
	b := response.New(c)

	var payload dto.CheckoutRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.CartID <= 0 {
		return b.WithError(errorbank.BadRequest("cart_id is required")).Build()
	}
	if payload.ShippingAddress.Line1 == "" || payload.ShippingAddress.PostalCode == "" {
		return b.WithError(errorbank.BadRequest("shipping address requires line1 and postal_code")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "checkout.create", trace.WithAttributes(attribute.Int64("cart.id", payload.CartID)))
	defer span.End()

	in := service.Input{
		CartID:          payload.CartID,
		UserID:          payload.UserID,
		Notes:           payload.Notes,
		ShippingAddress: payload.ShippingAddress.ToAddress(),
	}
	if payload.BillingAddress != nil {
		billing := payload.BillingAddress.ToAddress()
		in.BillingAddress = &billing
	}

	order, err := h.svc.Checkout(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}
