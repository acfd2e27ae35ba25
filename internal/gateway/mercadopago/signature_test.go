package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/emporia/internal/config"
	"github.com/Additional-Code/emporia/internal/entity"
)

func signedHeader(secret, ts, requestID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(requestID))
	mac.Write(body)
	return "ts=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func testClient(secret string) *Client {
	return NewClient(config.Config{
		Payment: config.Payment{AccessToken: "token", WebhookSecret: secret},
	}, nil)
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	body := []byte(`{"type":"payment","data":{"id":"123"}}`)
	header := signedHeader("top-secret", "1704908010", "req-1", body)

	client := testClient("top-secret")
	assert.True(t, client.VerifyWebhookSignature(header, "req-1", body))
}

func TestVerifyWebhookSignature_FailsClosed(t *testing.T) {
	body := []byte(`{"type":"payment"}`)
	valid := signedHeader("top-secret", "1704908010", "req-1", body)

	tests := []struct {
		name      string
		client    *Client
		header    string
		requestID string
		body      []byte
	}{
		{"no secret configured", testClient(""), valid, "req-1", body},
		{"missing signature header", testClient("top-secret"), "", "req-1", body},
		{"missing request id", testClient("top-secret"), valid, "", body},
		{"malformed header", testClient("top-secret"), "garbage", "req-1", body},
		{"header without v1", testClient("top-secret"), "ts=1704908010", "req-1", body},
		{"wrong secret", testClient("other-secret"), valid, "req-1", body},
		{"tampered body", testClient("top-secret"), valid, "req-1", []byte(`{"type":"payment","amount":1}`)},
		{"tampered timestamp", testClient("top-secret"), "ts=9999999999,v1=" + valid[len("ts=1704908010,v1="):], "req-1", body},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, tc.client.VerifyWebhookSignature(tc.header, tc.requestID, tc.body))
		})
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want entity.PaymentStatus
	}{
		{"approved", entity.PaymentPaid},
		{"pending", entity.PaymentPending},
		{"in_process", entity.PaymentPending},
		{"rejected", entity.PaymentFailed},
		{"cancelled", entity.PaymentCancelled},
		{"refunded", entity.PaymentRefunded},
		{"charged_back", entity.PaymentPending},
		{"", entity.PaymentPending},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, MapStatus(tc.raw), "status %q", tc.raw)
	}
}
