package domain

import "time"

// Payment statuses stored in the billing ledger and snapshot.
const (
	PaymentStatusUnknown  = "unknown"
	PaymentStatusTrial    = "trial"
	PaymentStatusTrialing = "trialing"
	PaymentStatusActive   = "active"
	PaymentStatusPastDue  = "past_due"
	PaymentStatusCanceled = "canceled"
	PaymentStatusUnpaid   = "unpaid"
)

// WebflowUser is the Webflow account that authorized the app.
type WebflowUser struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// AuthData is the OAuth authorization of a site, stored under auth-data:<siteId>.
// It never carries widget customization.
type AuthData struct {
	SiteID      string      `json:"siteId"`
	SiteName    string      `json:"siteName,omitempty"`
	ShortName   string      `json:"shortName,omitempty"`
	AccessToken string      `json:"accessToken"`
	Scope       string      `json:"scope,omitempty"`
	User        WebflowUser `json:"user"`
	InstalledAt time.Time   `json:"installedAt"`
	RefreshedAt *time.Time  `json:"refreshedAt,omitempty"`
}

// UserAuth binds a user to a site for the lifetime of a session token,
// stored under user-auth:<userId>.
type UserAuth struct {
	UserID      string      `json:"userId"`
	User        WebflowUser `json:"user"`
	SiteID      string      `json:"siteId,omitempty"`
	AccessToken string      `json:"accessToken,omitempty"`
	ExpiresAt   int64       `json:"exp"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Ledger is the billing record of a site, stored under user_data_<siteId>.
type Ledger struct {
	SiteID             string     `json:"siteId"`
	PaymentStatus      string     `json:"paymentStatus"`
	Email              string     `json:"email,omitempty"`
	CustomerID         string     `json:"stripeCustomerId,omitempty"`
	SubscriptionID     string     `json:"stripeSubscriptionId,omitempty"`
	TrialStartDate     *time.Time `json:"trialStartDate,omitempty"`
	TrialEndDate       *time.Time `json:"trialEndDate,omitempty"`
	CurrentPeriodStart int64      `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   int64      `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	LastPaymentDate    *time.Time `json:"lastPaymentDate,omitempty"`
	CanceledAt         *time.Time `json:"canceledAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// PaymentSnapshot is the last known Stripe subscription state, stored under
// payment:<siteId>.
type PaymentSnapshot struct {
	SiteID             string    `json:"siteId"`
	Status             string    `json:"status"`
	SubscriptionID     string    `json:"subscriptionId,omitempty"`
	CustomerID         string    `json:"customerId,omitempty"`
	CurrentPeriodStart int64     `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   int64     `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool      `json:"cancelAtPeriodEnd"`
	LastEvent          string    `json:"lastEvent,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// DomainMapping maps a hostname to a site, stored under domain:<host>.
type DomainMapping struct {
	SiteID    string    `json:"siteId"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
}

// CustomDomainData mirrors a declared custom domain, stored under both
// custom-domain-data:<siteId> and custom-domain:<domain>.
type CustomDomainData struct {
	SiteID                string                 `json:"siteId"`
	CustomDomain          string                 `json:"customDomain"`
	Customization         map[string]interface{} `json:"customization"`
	AccessibilityProfiles map[string]interface{} `json:"accessibilityProfiles,omitempty"`
	UpdatedAt             time.Time              `json:"updatedAt"`
}

// Installation is the one-time install record, stored under installation_<siteId>.
type Installation struct {
	SiteID      string                 `json:"siteId"`
	Event       string                 `json:"event"`
	InstalledAt time.Time              `json:"installedAt"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}
