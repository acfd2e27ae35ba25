package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyWebhookSignature validates an inbound webhook against the configured
// secret. The manifest is the signature header's timestamp, the request id,
// and the raw body concatenated, signed with HMAC-SHA256 and compared in
// constant time against the v1 value. Verification fails closed: a missing
// secret, absent headers, or a malformed signature header all reject the
// webhook.
func (c *Client) VerifyWebhookSignature(signatureHeader, requestID string, body []byte) bool {
	if c.cfg.WebhookSecret == "" {
		return false
	}
	if signatureHeader == "" || requestID == "" {
		return false
	}

	ts, v1 := parseSignatureHeader(signatureHeader)
	if ts == "" || v1 == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte(requestID))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}

// parseSignatureHeader splits "ts=<unix>,v1=<hex>" into its parts.
func parseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1
}
