package andreani

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature checks the optional HMAC-SHA256 signature the
// carrier sends over the raw request body. Without a configured secret the
// header is not enforced; once a secret is set, a missing or wrong signature
// is rejected.
func (c *Client) VerifyWebhookSignature(signature string, body []byte) bool {
	if c.cfg.WebhookSecret == "" {
		return true
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
