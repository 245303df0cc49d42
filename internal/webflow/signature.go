package webflow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingSignature = errors.New("webflow: missing webhook signature")
	ErrBadSignature     = errors.New("webflow: webhook signature mismatch")
)

// SignWebhook returns hex(HMAC-SHA256(secret, timestamp ":" body)).
func SignWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the x-webflow-signature header value.
func VerifyWebhook(secret, timestamp, signature string, body []byte) error {
	if secret == "" || timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	expected := SignWebhook(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}

	return nil
}
