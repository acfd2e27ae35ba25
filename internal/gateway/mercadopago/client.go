package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
)

var gatewayTracer = otel.Tracer("github.com/Additional-Code/emporia/gateway/mercadopago")

// ErrNotConfigured is returned when the gateway access token is missing.
var ErrNotConfigured = errors.New("mercadopago: access token not configured")

// GatewayError wraps a failed gateway call with the HTTP status and raw
// response body for diagnosis.
type GatewayError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mercadopago %s failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Payer identifies who is paying: a registered user or a guest name/email.
type Payer struct {
	Name  string
	Email string
}

// Preference is a gateway-created hosted checkout session.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// PaymentInfo is the gateway's view of a payment.
type PaymentInfo struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount float64
	Raw               map[string]any
}

// Client talks to the MercadoPago REST API.
type Client struct {
	cfg    config.Payment
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a gateway client. The access token is checked lazily on
// first use so the application can boot without payment credentials.
func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg.Payment,
		http:   &http.Client{Timeout: cfg.Payment.Timeout},
		logger: logger,
	}
}

func (c *Client) ensureConfigured() error {
	if c.cfg.AccessToken == "" {
		return ErrNotConfigured
	}
	return nil
}

// CreatePreference registers a hosted-checkout preference for the order and
// returns the gateway id plus redirect URLs.
func (c *Client) CreatePreference(ctx context.Context, order *entity.Order, payer Payer) (*Preference, error) {
	ctx, span := gatewayTracer.Start(ctx, "MercadoPago.CreatePreference", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	if err := c.ensureConfigured(); err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"id":         item.SKU,
			"title":      item.Name,
			"quantity":   item.Quantity,
			"unit_price": item.Price,
		})
	}
	// Shipping and tax are not line items on the gateway side; carry the
	// order total as a single adjustment when they differ from the sum.
	if extra := order.Total - order.Subtotal + order.Discount; extra > 0 {
		items = append(items, map[string]any{
			"id":         "adjustments",
			"title":      "Shipping and taxes",
			"quantity":   1,
			"unit_price": extra,
		})
	}

	payload := map[string]any{
		"items":              items,
		"external_reference": fmt.Sprintf("%d", order.ID),
		"payer": map[string]any{
			"name":  payer.Name,
			"email": payer.Email,
		},
		"back_urls": map[string]any{
			"success": c.cfg.SuccessURL,
			"failure": c.cfg.FailureURL,
			"pending": c.cfg.PendingURL,
		},
		"auto_return": "approved",
	}

	var pref Preference
	if err := c.post(ctx, "/checkout/preferences", payload, &pref); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preference create failed")
		return nil, err
	}
	if pref.ID == "" {
		err := &GatewayError{Operation: "create preference", StatusCode: http.StatusOK, Body: "empty preference id"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty preference")
		return nil, err
	}
	return &pref, nil
}

// GetPayment fetches the current remote state of a payment by gateway id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	ctx, span := gatewayTracer.Start(ctx, "MercadoPago.GetPayment", trace.WithAttributes(attribute.String("payment.external_id", paymentID)))
	defer span.End()

	if err := c.ensureConfigured(); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := c.get(ctx, "/v1/payments/"+paymentID, &raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment fetch failed")
		return nil, err
	}

	info := &PaymentInfo{Raw: raw}
	if v, ok := raw["id"].(float64); ok {
		info.ID = fmt.Sprintf("%.0f", v)
	} else if v, ok := raw["id"].(string); ok {
		info.ID = v
	}
	info.Status, _ = raw["status"].(string)
	info.StatusDetail, _ = raw["status_detail"].(string)
	info.ExternalReference, _ = raw["external_reference"].(string)
	info.TransactionAmount, _ = raw["transaction_amount"].(float64)

	if info.ID == "" {
		err := &GatewayError{Operation: "get payment", StatusCode: http.StatusOK, Body: "empty payment payload"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty payment")
		return nil, err
	}
	return info, nil
}

// MapStatus translates the gateway's status vocabulary into ours. Anything
// unrecognized stays pending until the gateway says otherwise.
func MapStatus(raw string) entity.PaymentStatus {
	switch raw {
	case "approved":
		return entity.PaymentPaid
	case "pending", "in_process":
		return entity.PaymentPending
	case "rejected":
		return entity.PaymentFailed
	case "cancelled":
		return entity.PaymentCancelled
	case "refunded":
		return entity.PaymentRefunded
	default:
		return entity.PaymentPending
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, operation string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mercadopago %s: read body: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{Operation: operation, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &GatewayError{Operation: operation, StatusCode: resp.StatusCode, Body: string(raw)}
		}
	}
	return nil
}
