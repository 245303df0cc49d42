package services

import "errors"

var (
	ErrSiteRequired      = errors.New("siteId is required")
	ErrSiteNotFound      = errors.New("site not found")
	ErrDomainRequired    = errors.New("domain is required")
	ErrDomainNotFound    = errors.New("domain not found")
	ErrSiteNotAuthorized = errors.New("site has not authorized the app")
	ErrMissingCode       = errors.New("missing authorization code")
	ErrInvalidIDToken    = errors.New("invalid id token")
	ErrNoPaymentRecord   = errors.New("no payment record for site")
	ErrNoSubscription    = errors.New("no subscription for site")
	ErrInvalidAmount     = errors.New("amount must be a positive integer")
	ErrInvalidLocation   = errors.New("location must be header or footer")
	ErrInvalidWebhook    = errors.New("malformed webhook payload")
)
