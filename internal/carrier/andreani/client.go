package andreani

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/emporia/internal/config"
)

var carrierTracer = otel.Tracer("github.com/Additional-Code/emporia/carrier/andreani")

// Token lifetime the carrier grants unless it says otherwise, and the skew
// within which a cached token is refreshed early.
const (
	defaultTokenLifetime = 24 * time.Hour
	tokenRefreshSkew     = 5 * time.Minute
)

// ProviderError wraps a failed carrier call with the HTTP status and raw
// response body for diagnosis.
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("andreani %s failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// QuoteRequest asks for a shipping price to a destination postal code.
type QuoteRequest struct {
	OriginPostalCode      string
	DestinationPostalCode string
	WeightKg              float64
	DeclaredValue         float64
}

// Quote is the carrier's priced answer.
type Quote struct {
	Amount        float64
	Currency      string
	EstimatedDays int
}

// ShipmentRequest describes a parcel to hand to the carrier.
type ShipmentRequest struct {
	OrderNumber           string
	OriginPostalCode      string
	DestinationPostalCode string
	DestinationAddress    string
	RecipientName         string
	RecipientPhone        string
	WeightKg              float64
	DeclaredValue         float64
}

// ShipmentResponse carries the carrier's acceptance of a parcel.
type ShipmentResponse struct {
	TrackingNumber    string
	LabelURL          string
	EstimatedDelivery *time.Time
}

// TrackingInfo is the carrier's current view of a shipment.
type TrackingInfo struct {
	TrackingNumber string
	RawStatus      string
	Raw            map[string]any
}

// Client talks to the Andreani REST API with a lazily acquired bearer token.
type Client struct {
	cfg    config.Shipping
	http   *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient builds a carrier client; authentication happens on first use.
func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg.Shipping,
		http:   &http.Client{Timeout: cfg.Shipping.Timeout},
		logger: logger,
	}
}

// Quote prices a parcel.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := carrierTracer.Start(ctx, "Andreani.Quote", trace.WithAttributes(attribute.String("shipping.postal_code", req.DestinationPostalCode)))
	defer span.End()

	payload := map[string]any{
		"codigoPostalOrigen":  req.OriginPostalCode,
		"codigoPostalDestino": req.DestinationPostalCode,
		"pesoKg":              req.WeightKg,
		"valorDeclarado":      req.DeclaredValue,
	}

	var out struct {
		Tarifa        float64 `json:"tarifa"`
		Moneda        string  `json:"moneda"`
		DiasEstimados int     `json:"diasEstimados"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/tarifas", payload, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return nil, err
	}
	if out.Tarifa <= 0 {
		err := &ProviderError{Operation: "quote", StatusCode: http.StatusOK, Body: "empty tariff"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty tariff")
		return nil, err
	}
	return &Quote{Amount: out.Tarifa, Currency: out.Moneda, EstimatedDays: out.DiasEstimados}, nil
}

// CreateShipment hands a parcel to the carrier, returning tracking data.
func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (*ShipmentResponse, error) {
	ctx, span := carrierTracer.Start(ctx, "Andreani.CreateShipment", trace.WithAttributes(attribute.String("order.number", req.OrderNumber)))
	defer span.End()

	payload := map[string]any{
		"referencia":          req.OrderNumber,
		"codigoPostalOrigen":  req.OriginPostalCode,
		"codigoPostalDestino": req.DestinationPostalCode,
		"domicilioDestino":    req.DestinationAddress,
		"destinatario":        req.RecipientName,
		"telefono":            req.RecipientPhone,
		"pesoKg":              req.WeightKg,
		"valorDeclarado":      req.DeclaredValue,
	}

	var out struct {
		NumeroDeTracking string `json:"numeroDeTracking"`
		Etiqueta         string `json:"etiqueta"`
		FechaEstimada    string `json:"fechaEstimadaDeEntrega"`
	}
	if err := c.call(ctx, http.MethodPost, "/v2/ordenes-de-envio", payload, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create shipment failed")
		return nil, err
	}
	if out.NumeroDeTracking == "" {
		err := &ProviderError{Operation: "create shipment", StatusCode: http.StatusOK, Body: "empty tracking number"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty tracking")
		return nil, err
	}

	resp := &ShipmentResponse{
		TrackingNumber: out.NumeroDeTracking,
		LabelURL:       out.Etiqueta,
	}
	if out.FechaEstimada != "" {
		if eta, err := time.Parse(time.RFC3339, out.FechaEstimada); err == nil {
			resp.EstimatedDelivery = &eta
		}
	}
	return resp, nil
}

// Track fetches the carrier's current status for a tracking number.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	ctx, span := carrierTracer.Start(ctx, "Andreani.Track", trace.WithAttributes(attribute.String("shipment.tracking_number", trackingNumber)))
	defer span.End()

	var raw map[string]any
	if err := c.call(ctx, http.MethodGet, "/v1/envios/"+trackingNumber+"/trazas", nil, &raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "track failed")
		return nil, err
	}

	status, _ := raw["estado"].(string)
	if status == "" {
		err := &ProviderError{Operation: "track", StatusCode: http.StatusOK, Body: "empty tracking payload"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty payload")
		return nil, err
	}
	return &TrackingInfo{TrackingNumber: trackingNumber, RawStatus: status, Raw: raw}, nil
}

// bearerToken returns a cached token, re-authenticating when the cached one
// is missing or within the refresh skew of its expiry.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > tokenRefreshSkew {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"clientId":     c.cfg.ClientID,
		"clientSecret": c.cfg.ClientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("andreani login: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("andreani login: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{Operation: "login", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expiresIn"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Token == "" {
		return "", &ProviderError{Operation: "login", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	lifetime := defaultTokenLifetime
	if out.ExpiresIn > 0 {
		lifetime = time.Duration(out.ExpiresIn) * time.Second
	}

	c.token = out.Token
	c.tokenExpiry = time.Now().Add(lifetime)
	if c.logger != nil {
		c.logger.Debug("andreani token refreshed", zap.Time("expires_at", c.tokenExpiry))
	}
	return c.token, nil
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("andreani %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("andreani %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Operation: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &ProviderError{Operation: path, StatusCode: resp.StatusCode, Body: string(raw)}
		}
	}
	return nil
}
