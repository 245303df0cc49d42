package billing_test

import (
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/contrastkit/contrastkit/internal/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v79/webhook"
)

var webhookBody = []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)

func signature(secret string, at time.Time, body []byte) string {
	return hex.EncodeToString(webhook.ComputeSignature(at, body, secret))
}

func signatureHeader(secret string, at time.Time, body []byte) string {
	return "t=" + strconv.FormatInt(at.Unix(), 10) + ",v1=" + signature(secret, at, body)
}

func TestVerifySignature(t *testing.T) {
	now := time.Now()

	assert.NoError(t, billing.VerifySignature(signatureHeader("whsec_test", now, webhookBody), webhookBody, "whsec_test", 5*time.Minute))

	old := signatureHeader("whsec_test", time.Unix(1_700_000_000, 0), webhookBody)
	assert.NoError(t, billing.VerifySignature(old, webhookBody, "whsec_test", 0))
}

func TestVerifySignature_Failures(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	header := signatureHeader("whsec_test", at, webhookBody)

	assert.ErrorIs(t, billing.VerifySignature(header, webhookBody, "", 0), billing.ErrMissingSecret)
	assert.ErrorIs(t, billing.VerifySignature("", webhookBody, "whsec_test", 0), billing.ErrMissingHeader)
	assert.ErrorIs(t, billing.VerifySignature(header, webhookBody, "whsec_other", 0), billing.ErrSignatureMismatch)
	assert.ErrorIs(t, billing.VerifySignature(header, []byte(`{}`), "whsec_test", 0), billing.ErrSignatureMismatch)
	assert.ErrorIs(t, billing.VerifySignature("t=1", webhookBody, "whsec_test", 0), billing.ErrSignatureMismatch)
	assert.ErrorIs(t, billing.VerifySignature("garbage", webhookBody, "whsec_test", 0), billing.ErrSignatureMismatch)

	stale := signatureHeader("whsec_test", time.Now().Add(-time.Hour), webhookBody)
	assert.ErrorIs(t, billing.VerifySignature(stale, webhookBody, "whsec_test", time.Minute), billing.ErrTimestampTolerance)
}

func TestVerifySignature_AnyV1Matches(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	header := "t=1700000000,v1=deadbeef,v0=ignored,v1=" + signature("whsec_test", at, webhookBody)

	assert.NoError(t, billing.VerifySignature(header, webhookBody, "whsec_test", 0))
}

func TestVerifySignature_IgnoresAPIVersion(t *testing.T) {
	body := []byte(`{"id":"evt_2","object":"event","api_version":"2019-01-01","type":"invoice.payment_failed"}`)
	header := signatureHeader("whsec_x", time.Now(), body)

	assert.NoError(t, billing.VerifySignature(header, body, "whsec_x", 5*time.Minute))
	assert.ErrorIs(t, billing.VerifySignature(header, body, "whsec_y", 5*time.Minute), billing.ErrSignatureMismatch)
}
