package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/billing"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/repository"
)

const (
	DefaultTrialDays = 7
	DefaultCurrency  = "usd"
)

type BillingConfig struct {
	PriceID          string
	TrialDays        int
	Currency         string
	WebhookSecret    string
	WebhookTolerance time.Duration
}

// PaymentStatus summarizes a site's billing state.
type PaymentStatus struct {
	SiteID            string     `json:"siteId"`
	PaymentStatus     string     `json:"paymentStatus"`
	HasAccess         bool       `json:"hasAccess"`
	CustomerID        string     `json:"customerId,omitempty"`
	SubscriptionID    string     `json:"subscriptionId,omitempty"`
	TrialEndDate      *time.Time `json:"trialEndDate,omitempty"`
	CurrentPeriodEnd  int64      `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	LastEvent         string     `json:"lastEvent,omitempty"`
}

// DomainValidation is the result of validating a hostname for the widget.
type DomainValidation struct {
	Domain    string `json:"domain"`
	SiteID    string `json:"siteId"`
	IsValid   bool   `json:"isValid"`
	HasAccess bool   `json:"hasAccess"`
}

type SetupResult struct {
	CustomerID   string `json:"customerId"`
	ClientSecret string `json:"clientSecret"`
}

// BillingService manages trials, Stripe subscriptions and widget access.
type BillingService struct {
	gateway billing.Gateway
	repos   *repository.Repositories
	cfg     BillingConfig
	events  events.Publisher
	logger  log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewBillingService creates a new BillingService. gateway may be nil when
// Stripe is not configured; trials and access checks still work.
func NewBillingService(
	gateway billing.Gateway,
	repos *repository.Repositories,
	cfg BillingConfig,
	publisher events.Publisher,
	logger log.Logger,
	m *metrics.Metrics,
) *BillingService {
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = DefaultTrialDays
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}

	return &BillingService{
		gateway: gateway,
		repos:   repos,
		cfg:     cfg,
		events:  publisher,
		logger:  logger.With(log.Fields{"component": "billing"}),
		metrics: m,
		now:     time.Now,
	}
}

func (s *BillingService) stripe() (billing.Gateway, error) {
	if s.gateway == nil {
		return nil, billing.ErrNotConfigured
	}

	return s.gateway, nil
}

func (s *BillingService) ledger(ctx context.Context, siteID string) (*domain.Ledger, error) {
	l, err := s.repos.Ledgers.Get(ctx, siteID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}

	return l, err
}

func (s *BillingService) snapshot(ctx context.Context, siteID string) (*domain.PaymentSnapshot, error) {
	snap, err := s.repos.Payments.Get(ctx, siteID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}

	return snap, err
}

// ledgerOrNew loads the site's ledger or starts an empty one.
func (s *BillingService) ledgerOrNew(ctx context.Context, siteID string) (*domain.Ledger, error) {
	l, err := s.ledger(ctx, siteID)
	if err != nil || l != nil {
		return l, err
	}

	return &domain.Ledger{
		SiteID:        siteID,
		PaymentStatus: domain.PaymentStatusUnknown,
		CreatedAt:     s.now().UTC(),
	}, nil
}

// CreateTrial starts a trial for a site without a ledger. When a ledger
// already exists it is returned unchanged and created is false.
func (s *BillingService) CreateTrial(ctx context.Context, siteID, email string) (*domain.Ledger, bool, error) {
	if siteID == "" {
		return nil, false, ErrSiteRequired
	}

	existing, err := s.ledger(ctx, siteID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.now().UTC()
	end := now.AddDate(0, 0, s.cfg.TrialDays)
	l := &domain.Ledger{
		SiteID:         siteID,
		PaymentStatus:  domain.PaymentStatusTrial,
		Email:          email,
		TrialStartDate: &now,
		TrialEndDate:   &end,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repos.Ledgers.Put(ctx, l); err != nil {
		return nil, false, fmt.Errorf("store ledger: %w", err)
	}

	_ = s.events.Publish(ctx, events.New(events.TypeTrialStarted, siteID, map[string]interface{}{
		"trialEndDate": end.Format(time.RFC3339),
	}))
	s.logger.Info(ctx, "Trial started", log.Fields{"site_id": siteID, "trial_end": end})

	return l, true, nil
}

// Access reports whether siteID may use the widget. A site without settings
// never has access.
func (s *BillingService) Access(ctx context.Context, siteID string) (bool, error) {
	ok, err := s.repos.Settings.Exists(ctx, siteID)
	if err != nil || !ok {
		return false, err
	}

	ledger, err := s.ledger(ctx, siteID)
	if err != nil {
		return false, err
	}
	snap, err := s.snapshot(ctx, siteID)
	if err != nil {
		return false, err
	}

	return HasAccess(ledger, snap, s.now()), nil
}

// ResolveSite returns siteID, or the site mapped to host. A host miss, or a
// mapping to a site without settings, is ErrDomainNotFound.
func (s *BillingService) ResolveSite(ctx context.Context, siteID, host string) (string, error) {
	if siteID != "" {
		return siteID, nil
	}
	if repository.NormalizeHost(host) == "" {
		return "", ErrSiteRequired
	}

	mapping, err := s.repos.Domains.Lookup(ctx, host)
	if errors.Is(err, domain.ErrNotFound) {
		return "", ErrDomainNotFound
	}
	if err != nil {
		return "", err
	}

	ok, err := s.repos.Settings.Exists(ctx, mapping.SiteID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrDomainNotFound
	}

	return mapping.SiteID, nil
}

func (s *BillingService) PaymentStatus(ctx context.Context, siteID string) (*PaymentStatus, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}

	ledger, err := s.ledger(ctx, siteID)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if ledger == nil && snap == nil {
		return nil, ErrNoPaymentRecord
	}

	access, err := s.Access(ctx, siteID)
	if err != nil {
		return nil, err
	}

	out := &PaymentStatus{SiteID: siteID, HasAccess: access}
	if snap != nil {
		out.PaymentStatus = snap.Status
		out.CustomerID = snap.CustomerID
		out.SubscriptionID = snap.SubscriptionID
		out.CurrentPeriodEnd = snap.CurrentPeriodEnd
		out.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
		out.LastEvent = snap.LastEvent
	}
	if ledger != nil {
		out.PaymentStatus = ledger.PaymentStatus
		out.TrialEndDate = ledger.TrialEndDate
		if ledger.CustomerID != "" {
			out.CustomerID = ledger.CustomerID
		}
		if ledger.SubscriptionID != "" {
			out.SubscriptionID = ledger.SubscriptionID
		}
		if ledger.CurrentPeriodEnd != 0 {
			out.CurrentPeriodEnd = ledger.CurrentPeriodEnd
			out.CancelAtPeriodEnd = ledger.CancelAtPeriodEnd
		}
	}

	return out, nil
}

func (s *BillingService) ValidateDomain(ctx context.Context, host string) (*DomainValidation, error) {
	if repository.NormalizeHost(host) == "" {
		return nil, ErrDomainRequired
	}

	siteID, err := s.ResolveSite(ctx, "", host)
	if err != nil {
		return nil, err
	}

	access, err := s.Access(ctx, siteID)
	if err != nil {
		return nil, err
	}

	return &DomainValidation{
		Domain:    repository.NormalizeHost(host),
		SiteID:    siteID,
		IsValid:   true,
		HasAccess: access,
	}, nil
}

// customer returns the ledger's Stripe customer. A newly created customer is
// stored in the ledger right away so a later failure cannot orphan it.
func (s *BillingService) customer(ctx context.Context, gw billing.Gateway, l *domain.Ledger, email string) (string, error) {
	if l.CustomerID != "" {
		return l.CustomerID, nil
	}
	if email == "" {
		email = l.Email
	}

	c, err := gw.CreateCustomer(ctx, billing.CustomerRequest{Email: email, SiteID: l.SiteID})
	s.metrics.Upstream("stripe", err)
	if err != nil {
		return "", err
	}

	l.CustomerID = c.ID
	if l.Email == "" {
		l.Email = email
	}
	l.UpdatedAt = s.now().UTC()
	if err := s.repos.Ledgers.Put(ctx, l); err != nil {
		return "", fmt.Errorf("store ledger: %w", err)
	}

	return c.ID, nil
}

// SetupPayment creates (or reuses) the site's Stripe customer and a
// SetupIntent for collecting a payment method.
func (s *BillingService) SetupPayment(ctx context.Context, siteID, email string) (*SetupResult, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}
	gw, err := s.stripe()
	if err != nil {
		return nil, err
	}

	l, err := s.ledgerOrNew(ctx, siteID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.customer(ctx, gw, l, email)
	if err != nil {
		return nil, err
	}

	intent, err := gw.CreateSetupIntent(ctx, customerID)
	s.metrics.Upstream("stripe", err)
	if err != nil {
		return nil, err
	}

	return &SetupResult{CustomerID: customerID, ClientSecret: intent.ClientSecret}, nil
}

// CreateSubscription subscribes the site to the configured price and records
// the result in the ledger and snapshot.
func (s *BillingService) CreateSubscription(ctx context.Context, siteID, paymentMethodID, email string) (*billing.Subscription, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}
	gw, err := s.stripe()
	if err != nil {
		return nil, err
	}

	l, err := s.ledgerOrNew(ctx, siteID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.customer(ctx, gw, l, email)
	if err != nil {
		return nil, err
	}

	sub, err := gw.CreateSubscription(ctx, billing.SubscriptionRequest{
		CustomerID:      customerID,
		PriceID:         s.cfg.PriceID,
		PaymentMethodID: paymentMethodID,
		SiteID:          siteID,
	})
	s.metrics.Upstream("stripe", err)
	if err != nil {
		return nil, err
	}
	sub.SiteID = siteID
	if sub.CustomerID == "" {
		sub.CustomerID = customerID
	}

	if err := s.applySubscription(ctx, l, sub, "create-subscription"); err != nil {
		return nil, err
	}

	_ = s.events.Publish(ctx, events.New(events.TypeSubscriptionCreated, siteID, map[string]interface{}{
		"subscriptionId": sub.ID,
		"status":         sub.Status,
	}))

	return sub, nil
}

// CreatePaymentIntent creates a one-off PaymentIntent. amount is in the
// currency's smallest unit.
func (s *BillingService) CreatePaymentIntent(ctx context.Context, siteID string, amount int64, currency string) (*billing.PaymentIntent, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	gw, err := s.stripe()
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = s.cfg.Currency
	}

	var customerID string
	if l, err := s.ledger(ctx, siteID); err != nil {
		return nil, err
	} else if l != nil {
		customerID = l.CustomerID
	}

	pi, err := gw.CreatePaymentIntent(ctx, billing.PaymentIntentRequest{
		Amount:     amount,
		Currency:   currency,
		CustomerID: customerID,
		SiteID:     siteID,
	})
	s.metrics.Upstream("stripe", err)

	return pi, err
}

// CancelSubscription cancels the site's subscription, immediately or at the
// end of the current period. The ledger keeps the record.
func (s *BillingService) CancelSubscription(ctx context.Context, siteID string, atPeriodEnd bool) (*billing.Subscription, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}
	gw, err := s.stripe()
	if err != nil {
		return nil, err
	}

	l, err := s.ledger(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if l == nil || l.SubscriptionID == "" {
		return nil, ErrNoSubscription
	}

	sub, err := gw.CancelSubscription(ctx, l.SubscriptionID, atPeriodEnd)
	s.metrics.Upstream("stripe", err)
	if err != nil {
		return nil, err
	}
	sub.SiteID = siteID

	if err := s.applySubscription(ctx, l, sub, "cancel-subscription"); err != nil {
		return nil, err
	}

	_ = s.events.Publish(ctx, events.New(events.TypeSubscriptionCanceled, siteID, map[string]interface{}{
		"subscriptionId":    sub.ID,
		"cancelAtPeriodEnd": atPeriodEnd,
	}))

	return sub, nil
}

// SubscriptionStatus fetches the live subscription and refreshes the
// ledger and snapshot.
func (s *BillingService) SubscriptionStatus(ctx context.Context, siteID string) (*billing.Subscription, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}
	gw, err := s.stripe()
	if err != nil {
		return nil, err
	}

	l, err := s.ledger(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if l == nil || l.SubscriptionID == "" {
		return nil, ErrNoSubscription
	}

	sub, err := gw.GetSubscription(ctx, l.SubscriptionID)
	s.metrics.Upstream("stripe", err)
	if err != nil {
		return nil, err
	}
	sub.SiteID = siteID

	if err := s.applySubscription(ctx, l, sub, "subscription-status"); err != nil {
		return nil, err
	}

	return sub, nil
}

// applySubscription writes sub into ledger l and the payment snapshot.
func (s *BillingService) applySubscription(ctx context.Context, l *domain.Ledger, sub *billing.Subscription, source string) error {
	now := s.now().UTC()

	l.SubscriptionID = sub.ID
	if sub.CustomerID != "" {
		l.CustomerID = sub.CustomerID
	}
	if sub.Status != "" {
		l.PaymentStatus = sub.Status
	}
	l.CurrentPeriodStart = sub.CurrentPeriodStart
	l.CurrentPeriodEnd = sub.CurrentPeriodEnd
	l.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	if sub.Status == domain.PaymentStatusCanceled && l.CanceledAt == nil {
		l.CanceledAt = &now
	}
	l.UpdatedAt = now

	if err := s.repos.Ledgers.Put(ctx, l); err != nil {
		return fmt.Errorf("store ledger: %w", err)
	}

	err := s.repos.Payments.Put(ctx, &domain.PaymentSnapshot{
		SiteID:             l.SiteID,
		Status:             l.PaymentStatus,
		SubscriptionID:     sub.ID,
		CustomerID:         l.CustomerID,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		LastEvent:          source,
		UpdatedAt:          now,
	})
	if err != nil {
		return fmt.Errorf("store payment snapshot: %w", err)
	}

	return nil
}
