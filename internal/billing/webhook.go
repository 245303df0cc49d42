package billing

import (
	"errors"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

var (
	ErrMissingSecret      = errors.New("billing: webhook secret is not configured")
	ErrMissingHeader      = errors.New("billing: missing Stripe-Signature header")
	ErrSignatureMismatch  = errors.New("billing: webhook signature mismatch")
	ErrTimestampTolerance = errors.New("billing: webhook timestamp outside tolerance")
)

// VerifySignature checks a Stripe-Signature header against body. Any v1
// entry may match. A tolerance of 0 skips the timestamp age check.
//
// Only the signature is checked here; the event's API version is not, so
// deliveries from endpoints pinned to older versions are still accepted.
func VerifySignature(header string, body []byte, secret string, tolerance time.Duration) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if header == "" {
		return ErrMissingHeader
	}

	var err error
	if tolerance > 0 {
		err = webhook.ValidatePayloadWithTolerance(body, header, secret, tolerance)
	} else {
		err = webhook.ValidatePayloadIgnoringTolerance(body, header, secret)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, webhook.ErrTooOld):
		return ErrTimestampTolerance
	case errors.Is(err, webhook.ErrNotSigned):
		return ErrMissingHeader
	default:
		return ErrSignatureMismatch
	}
}
