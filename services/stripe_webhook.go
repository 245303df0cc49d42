package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/billing"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/log"
	"github.com/stripe/stripe-go/v79"
)

// Webhook outcomes, also used as metric labels.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
	WebhookFailed    = "error"
)

// WebhookResult describes how a webhook delivery was handled.
type WebhookResult struct {
	EventID string `json:"eventId,omitempty"`
	Type    string `json:"type"`
	SiteID  string `json:"siteId,omitempty"`
	Outcome string `json:"outcome"`
}

// invoice is the part of a Stripe invoice object the webhook reads.
type invoice struct {
	ID                  string            `json:"id"`
	Customer            json.RawMessage   `json:"customer"`
	Subscription        json.RawMessage   `json:"subscription"`
	Metadata            map[string]string `json:"metadata"`
	SubscriptionDetails struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
}

func (inv *invoice) siteID() string {
	if id := inv.SubscriptionDetails.Metadata[billing.MetadataSiteID]; id != "" {
		return id
	}

	return inv.Metadata[billing.MetadataSiteID]
}

// expandableID reads a Stripe field that is either an id or an expanded
// object with an id.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var id string
	if json.Unmarshal(raw, &id) == nil {
		return id
	}

	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &obj)

	return obj.ID
}

var subscriptionEventTypes = map[stripe.EventType]string{
	stripe.EventTypeCustomerSubscriptionCreated: events.TypeSubscriptionCreated,
	stripe.EventTypeCustomerSubscriptionUpdated: events.TypeSubscriptionUpdated,
	stripe.EventTypeCustomerSubscriptionDeleted: events.TypeSubscriptionCanceled,
}

// HandleStripeWebhook verifies and applies a Stripe webhook delivery. Nothing
// is written unless the signature verifies.
func (s *BillingService) HandleStripeWebhook(ctx context.Context, signatureHeader string, payload []byte) (*WebhookResult, error) {
	err := billing.VerifySignature(signatureHeader, payload, s.cfg.WebhookSecret, s.cfg.WebhookTolerance)
	if err != nil {
		s.countWebhook("unknown", WebhookRejected)
		s.logger.Warn(ctx, "Rejected Stripe webhook", log.Fields{"reason": err.Error()})
		return nil, err
	}

	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil || evt.Data == nil {
		s.countWebhook("unknown", WebhookRejected)
		return nil, ErrInvalidWebhook
	}

	result := &WebhookResult{EventID: evt.ID, Type: string(evt.Type)}

	switch evt.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		err = s.onSubscriptionEvent(ctx, &evt, result)
	case stripe.EventTypeInvoicePaymentSucceeded, stripe.EventTypeInvoicePaymentFailed:
		err = s.onInvoiceEvent(ctx, &evt, result)
	default:
		result.Outcome = WebhookIgnored
	}

	if err != nil {
		result.Outcome = WebhookFailed
		s.countWebhook(result.Type, result.Outcome)
		s.logger.Error(ctx, "Failed to apply Stripe webhook", err, log.Fields{
			"event_id": evt.ID,
			"type":     result.Type,
			"site_id":  result.SiteID,
		})
		return result, err
	}

	s.countWebhook(result.Type, result.Outcome)
	s.logger.Info(ctx, "Stripe webhook handled", log.Fields{
		"event_id": evt.ID,
		"type":     result.Type,
		"site_id":  result.SiteID,
		"outcome":  result.Outcome,
	})

	return result, nil
}

func (s *BillingService) onSubscriptionEvent(ctx context.Context, evt *stripe.Event, result *WebhookResult) error {
	var raw stripe.Subscription
	if err := json.Unmarshal(evt.Data.Raw, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	sub := billing.FromStripeSubscription(&raw)
	if evt.Type == stripe.EventTypeCustomerSubscriptionDeleted {
		sub.Status = domain.PaymentStatusCanceled
	}
	result.SiteID = sub.SiteID
	if sub.SiteID == "" {
		result.Outcome = WebhookIgnored
		s.logger.Warn(ctx, "Subscription event without site metadata", log.Fields{"subscription_id": sub.ID})
		return nil
	}

	l, err := s.ledgerOrNew(ctx, sub.SiteID)
	if err != nil {
		return err
	}
	if err := s.applySubscription(ctx, l, sub, string(evt.Type)); err != nil {
		return err
	}

	result.Outcome = WebhookProcessed
	_ = s.events.Publish(ctx, events.New(subscriptionEventTypes[evt.Type], sub.SiteID, map[string]interface{}{
		"subscriptionId": sub.ID,
		"status":         sub.Status,
		"stripeEventId":  evt.ID,
	}))

	return nil
}

func (s *BillingService) onInvoiceEvent(ctx context.Context, evt *stripe.Event, result *WebhookResult) error {
	var inv invoice
	if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	siteID := inv.siteID()
	result.SiteID = siteID
	if siteID == "" {
		result.Outcome = WebhookIgnored
		s.logger.Warn(ctx, "Invoice event without site metadata", log.Fields{"invoice_id": inv.ID})
		return nil
	}

	l, err := s.ledgerOrNew(ctx, siteID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	eventType := events.TypePaymentSucceeded
	if evt.Type == stripe.EventTypeInvoicePaymentSucceeded {
		l.PaymentStatus = domain.PaymentStatusActive
		l.LastPaymentDate = &now
	} else {
		l.PaymentStatus = domain.PaymentStatusPastDue
		eventType = events.TypePaymentFailed
	}
	if id := expandableID(inv.Subscription); id != "" {
		l.SubscriptionID = id
	}
	if id := expandableID(inv.Customer); id != "" {
		l.CustomerID = id
	}
	l.UpdatedAt = now

	if err := s.repos.Ledgers.Put(ctx, l); err != nil {
		return fmt.Errorf("store ledger: %w", err)
	}

	err = s.repos.Payments.Put(ctx, &domain.PaymentSnapshot{
		SiteID:             siteID,
		Status:             l.PaymentStatus,
		SubscriptionID:     l.SubscriptionID,
		CustomerID:         l.CustomerID,
		CurrentPeriodStart: l.CurrentPeriodStart,
		CurrentPeriodEnd:   l.CurrentPeriodEnd,
		CancelAtPeriodEnd:  l.CancelAtPeriodEnd,
		LastEvent:          string(evt.Type),
		UpdatedAt:          now,
	})
	if err != nil {
		return fmt.Errorf("store payment snapshot: %w", err)
	}

	result.Outcome = WebhookProcessed
	_ = s.events.Publish(ctx, events.New(eventType, siteID, map[string]interface{}{
		"invoiceId":     inv.ID,
		"stripeEventId": evt.ID,
	}))

	return nil
}

func (s *BillingService) countWebhook(eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.StripeWebhookEvents.WithLabelValues(eventType, outcome).Inc()
	}
}
