package api

import "github.com/contrastkit/contrastkit/session"

// FallbackBody is returned with 200 for unknown routes.
const FallbackBody = "Accessibility Widget API"

// TokenRequest exchanges a Designer ID token for a session token.
type TokenRequest struct {
	IDToken string `json:"idToken"`
	SiteID  string `json:"siteId"`
}

// VerifyResponse is returned by the session verification endpoint.
type VerifyResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user,omitempty"`
	SiteID        string        `json:"siteId,omitempty"`
	Exp           int64         `json:"exp,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// AuthSuccessMessage is posted to the Designer window after the OAuth popup
// completes.
type AuthSuccessMessage struct {
	Type         string       `json:"type"`
	SessionToken string       `json:"sessionToken"`
	User         session.User `json:"user"`
	SiteID       string       `json:"siteId"`
	Exp          int64        `json:"exp"`
}

const AuthSuccessType = "AUTH_SUCCESS"

type CustomDomainRequest struct {
	CustomDomain  string                 `json:"customDomain"`
	Customization map[string]interface{} `json:"customization,omitempty"`
}

type ApplyScriptRequest struct {
	ScriptID string `json:"scriptId"`
	Version  string `json:"version"`
	Location string `json:"location"`
}

type ScriptResponse struct {
	Success bool        `json:"success"`
	Created bool        `json:"created"`
	Result  interface{} `json:"result"`
}

type TrialRequest struct {
	Email string `json:"email"`
}

type TrialResponse struct {
	Success bool        `json:"success"`
	Created bool        `json:"created"`
	Ledger  interface{} `json:"data"`
}

type SetupPaymentRequest struct {
	Email string `json:"email"`
}

type CreateSubscriptionRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
	Email           string `json:"email"`
}

type PaymentIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type PaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CancelSubscriptionRequest cancels at period end unless CancelAtPeriodEnd
// is explicitly false.
type CancelSubscriptionRequest struct {
	CancelAtPeriodEnd *bool `json:"cancelAtPeriodEnd"`
}

type SubscriptionResponse struct {
	SubscriptionID     string `json:"subscriptionId"`
	Status             string `json:"status"`
	ClientSecret       string `json:"clientSecret,omitempty"`
	CurrentPeriodStart int64  `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   int64  `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancelAtPeriodEnd"`
}

type DomainLookupResponse struct {
	SiteID string `json:"siteId"`
	Domain string `json:"domain"`
}

type HealthResponse struct {
	Status string `json:"status"`
	KV     string `json:"kv"`
}

// WebhookResponse acknowledges a verified webhook delivery.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Type     string `json:"type,omitempty"`
	Outcome  string `json:"outcome"`
}
