// Package billing wraps the Stripe calls the app proxies and verifies
// Stripe webhook signatures.
package billing

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotConfigured = errors.New("billing: stripe is not configured")

// Error is a failed upstream call. StatusCode is the Stripe HTTP status, or
// 0 when the request never got a response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("stripe: status %d: %s", e.StatusCode, e.Message)
}

type CustomerRequest struct {
	Email  string
	Name   string
	SiteID string
}

type Customer struct {
	ID    string
	Email string
}

type SetupIntent struct {
	ID           string
	ClientSecret string
}

type SubscriptionRequest struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	SiteID          string
	TrialDays       int64
}

// Subscription is the subset of a Stripe subscription the app stores.
type Subscription struct {
	ID                 string
	Status             string
	CustomerID         string
	SiteID             string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	TrialEnd           int64
	CancelAtPeriodEnd  bool
	// ClientSecret of the first invoice's payment intent, when expanded.
	ClientSecret string
}

type PaymentIntentRequest struct {
	Amount     int64
	Currency   string
	CustomerID string
	SiteID     string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Gateway is the set of Stripe operations used by the billing endpoints.
type Gateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
	CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*Subscription, error)
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
}
