// Package events forwards domain events to external sinks.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeAppAuthorized        = "app.authorized"
	TypeAppInstalled         = "app.installed"
	TypeSettingsPublished    = "settings.published"
	TypeTrialStarted         = "billing.trial_started"
	TypeSubscriptionCreated  = "billing.subscription_created"
	TypeSubscriptionUpdated  = "billing.subscription_updated"
	TypeSubscriptionCanceled = "billing.subscription_canceled"
	TypePaymentSucceeded     = "billing.payment_succeeded"
	TypePaymentFailed        = "billing.payment_failed"
	TypeSitePublished        = "webflow.site_published"
)

type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	SiteID     string                 `json:"siteId,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// New creates an event with a fresh id.
func New(eventType, siteID string, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		SiteID:     siteID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers an event to one sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
