package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/repository"
)

const triggerSitePublish = "site_publish"

type webflowWebhook struct {
	TriggerType string                 `json:"triggerType"`
	Payload     map[string]interface{} `json:"payload"`
	SiteID      string                 `json:"siteId"`
}

func (w *webflowWebhook) siteID() string {
	if id := claimString(w.Payload, "siteId"); id != "" {
		return id
	}
	if id := claimString(w.Payload, "site"); id != "" {
		return id
	}

	return w.SiteID
}

// WebflowWebhookService records installs announced by Webflow webhooks.
type WebflowWebhookService struct {
	secret string
	repos  *repository.Repositories
	events events.Publisher
	logger log.Logger
	now    func() time.Time
}

// NewWebflowWebhookService creates a new WebflowWebhookService. secret is
// the app's client secret.
func NewWebflowWebhookService(secret string, repos *repository.Repositories, publisher events.Publisher, logger log.Logger) *WebflowWebhookService {
	return &WebflowWebhookService{
		secret: secret,
		repos:  repos,
		events: publisher,
		logger: logger.With(log.Fields{"component": "webflow_webhook"}),
		now:    time.Now,
	}
}

// Handle verifies a delivery, writes the site's installation record the
// first time the site is seen and forwards an event.
func (s *WebflowWebhookService) Handle(ctx context.Context, timestamp, signature string, body []byte) (*WebhookResult, error) {
	if err := webflow.VerifyWebhook(s.secret, timestamp, signature, body); err != nil {
		s.logger.Warn(ctx, "Rejected Webflow webhook", log.Fields{"reason": err.Error()})
		return nil, err
	}

	var hook webflowWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, ErrInvalidWebhook
	}

	result := &WebhookResult{Type: hook.TriggerType, SiteID: hook.siteID(), Outcome: WebhookIgnored}
	if result.SiteID == "" {
		s.logger.Warn(ctx, "Webflow webhook without site", log.Fields{"trigger": hook.TriggerType})
		return result, nil
	}

	created, err := s.repos.Installations.PutOnce(ctx, &domain.Installation{
		SiteID:      result.SiteID,
		Event:       hook.TriggerType,
		InstalledAt: s.now().UTC(),
		Payload:     hook.Payload,
	})
	if err != nil {
		result.Outcome = WebhookFailed
		return result, err
	}

	eventType := ""
	switch {
	case hook.TriggerType == triggerSitePublish:
		eventType = events.TypeSitePublished
	case created:
		eventType = events.TypeAppInstalled
	}
	if eventType != "" {
		_ = s.events.Publish(ctx, events.New(eventType, result.SiteID, map[string]interface{}{
			"trigger": hook.TriggerType,
			"payload": hook.Payload,
		}))
	}

	result.Outcome = WebhookProcessed
	s.logger.Info(ctx, "Webflow webhook handled", log.Fields{
		"site_id":       result.SiteID,
		"trigger":       hook.TriggerType,
		"first_install": created,
	})

	return result, nil
}
