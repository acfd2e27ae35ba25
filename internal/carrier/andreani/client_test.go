package andreani

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
)

type fakeCarrier struct {
	loginCalls int
	handler    http.HandlerFunc
}

func (f *fakeCarrier) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/login" {
		f.loginCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok-1"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok-1" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.handler(w, r)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeCarrier) {
	t.Helper()
	fake := &fakeCarrier{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(srv.Close)

	client := NewClient(config.Config{
		Shipping: config.Shipping{
			BaseURL:      srv.URL,
			ClientID:     "id",
			ClientSecret: "secret",
			Timeout:      5 * time.Second,
		},
	}, nil)
	return client, fake
}

func TestQuote(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tarifas", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tarifa": 6500.5, "moneda": "ARS", "diasEstimados": 3,
		})
	})

	quote, err := client.Quote(context.Background(), QuoteRequest{
		OriginPostalCode:      "1406",
		DestinationPostalCode: "5000",
		WeightKg:              2.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 6500.5, quote.Amount)
	assert.Equal(t, "ARS", quote.Currency)
	assert.Equal(t, 3, quote.EstimatedDays)
	assert.Equal(t, 1, fake.loginCalls)
}

func TestTokenReused(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tarifa": 100.0, "moneda": "ARS"})
	})

	for i := 0; i < 3; i++ {
		_, err := client.Quote(context.Background(), QuoteRequest{DestinationPostalCode: "5000"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fake.loginCalls, "token should be cached across calls")
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tarifa": 100.0, "moneda": "ARS"})
	})

	_, err := client.Quote(context.Background(), QuoteRequest{DestinationPostalCode: "5000"})
	require.NoError(t, err)

	client.mu.Lock()
	client.tokenExpiry = time.Now().Add(time.Minute)
	client.mu.Unlock()

	_, err = client.Quote(context.Background(), QuoteRequest{DestinationPostalCode: "5000"})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.loginCalls, "token inside refresh skew should be replaced")
}

func TestCreateShipment(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/ordenes-de-envio", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ORD-abc123", payload["referencia"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"numeroDeTracking":       "AND0001",
			"etiqueta":               "https://labels.example/AND0001.pdf",
			"fechaEstimadaDeEntrega": "2026-09-02T12:00:00Z",
		})
	})

	resp, err := client.CreateShipment(context.Background(), ShipmentRequest{
		OrderNumber:           "ORD-abc123",
		DestinationPostalCode: "5000",
		WeightKg:              1.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "AND0001", resp.TrackingNumber)
	assert.Equal(t, "https://labels.example/AND0001.pdf", resp.LabelURL)
	require.NotNil(t, resp.EstimatedDelivery)
	assert.Equal(t, 2026, resp.EstimatedDelivery.Year())
}

func TestCreateShipmentProviderError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"codigo postal invalido"}`))
	})

	_, err := client.CreateShipment(context.Background(), ShipmentRequest{OrderNumber: "ORD-x"})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusUnprocessableEntity, provErr.StatusCode)
	assert.Contains(t, provErr.Body, "codigo postal invalido")
}

func TestTrack(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/envios/AND0001/trazas", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"estado": "En camino"})
	})

	info, err := client.Track(context.Background(), "AND0001")
	require.NoError(t, err)
	assert.Equal(t, "En camino", info.RawStatus)
	assert.Equal(t, entity.ShippingInTransit, MapStatus(info.RawStatus))
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want entity.ShippingStatus
	}{
		{"Pendiente", entity.ShippingPending},
		{"En preparación", entity.ShippingProcessing},
		{"Despachado", entity.ShippingShipped},
		{"En camino", entity.ShippingInTransit},
		{"en tránsito", entity.ShippingInTransit},
		{"En distribución", entity.ShippingOutForDelivery},
		{"Entregado", entity.ShippingDelivered},
		{"No entregado", entity.ShippingFailed},
		{"Devuelto", entity.ShippingReturned},
		{"algo raro", entity.ShippingPending},
		{"", entity.ShippingPending},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, MapStatus(tc.raw), "status %q", tc.raw)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"numeroDeTracking":"AND0001","estado":"Entregado"}`)
	mac := hmac.New(sha256.New, []byte("carrier-secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	signed := NewClient(config.Config{Shipping: config.Shipping{WebhookSecret: "carrier-secret"}}, nil)
	unconfigured := NewClient(config.Config{}, nil)

	assert.True(t, signed.VerifyWebhookSignature(valid, body))
	assert.False(t, signed.VerifyWebhookSignature("", body))
	assert.False(t, signed.VerifyWebhookSignature(valid, []byte(`{}`)))
	assert.True(t, unconfigured.VerifyWebhookSignature("", body), "signature is optional without a configured secret")
	assert.True(t, unconfigured.VerifyWebhookSignature("garbage", body))
}
