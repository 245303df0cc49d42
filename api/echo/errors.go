package echo

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/contrastkit/contrastkit/domain"
	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/contrastkit/contrastkit/internal/billing"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"github.com/contrastkit/contrastkit/middleware"
	"github.com/contrastkit/contrastkit/services"
)

const (
	healthTimeout   = 2 * time.Second
	maxWebhookBytes = 1 << 20
)

var errNoSiteInSession = errors.New("session is not bound to a site")

// badRequests maps validation errors to their client-facing message.
var badRequests = []struct {
	err error
	msg string
}{
	{services.ErrSiteRequired, "siteId is required"},
	{errNoSiteInSession, "siteId is required"},
	{services.ErrDomainRequired, "domain is required"},
	{services.ErrMissingCode, "Missing authorization code"},
	{services.ErrInvalidIDToken, "Invalid ID token"},
	{services.ErrInvalidAmount, "Invalid amount"},
	{services.ErrInvalidLocation, "Invalid script location"},
	{services.ErrInvalidWebhook, "Invalid webhook payload"},
	{services.ErrSiteNotAuthorized, "Site has not authorized the app"},
	{domain.ErrInvalidPatch, "Invalid settings"},
	{webflow.ErrNoSites, "No sites authorized"},
	{billing.ErrMissingSecret, "Webhook secret not configured"},
	{billing.ErrMissingHeader, "Invalid signature"},
	{billing.ErrSignatureMismatch, "Invalid signature"},
	{billing.ErrTimestampTolerance, "Invalid signature"},
	{webflow.ErrMissingSignature, "Invalid signature"},
	{webflow.ErrBadSignature, "Invalid signature"},
}

var notFounds = []struct {
	err error
	msg string
}{
	{services.ErrSiteNotFound, "Settings not found"},
	{services.ErrDomainNotFound, "Domain not found"},
	{services.ErrNoPaymentRecord, "Payment record not found"},
	{services.ErrNoSubscription, "No subscription found"},
}

func toAPIError(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	for _, m := range badRequests {
		if errors.Is(err, m.err) {
			return apierrors.BadRequest(m.msg)
		}
	}
	for _, m := range notFounds {
		if errors.Is(err, m.err) {
			return apierrors.NotFound(m.msg)
		}
	}

	var wfErr *webflow.APIError
	if errors.As(err, &wfErr) {
		return apierrors.Upstream("Webflow API request failed", wfErr.StatusCode, wfErr.Body)
	}
	var stripeErr *billing.Error
	if errors.As(err, &stripeErr) {
		return apierrors.Upstream("Stripe request failed", stripeErr.StatusCode, stripeErr.Message)
	}

	switch {
	case errors.Is(err, webflow.ErrExchangeFailed):
		return apierrors.Upstream("Failed to exchange authorization code", 0, err.Error())
	case errors.Is(err, billing.ErrNotConfigured):
		return apierrors.Internal("Billing is not configured")
	case middleware.IsStoreFailure(err):
		return apierrors.Internal("Failed to verify session")
	}

	return apierrors.Internal("Internal server error")
}

// bind decodes the request body into v. An empty body leaves v unchanged.
func bind(c echo.Context, v interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return apierrors.BadRequest("Invalid request body")
	}

	return nil
}

// sessionSite returns the site bound to the caller's session.
func sessionSite(c echo.Context) (*middleware.Session, string, error) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		return nil, "", apierrors.Unauthorized()
	}
	site := s.SiteID()
	if site == "" {
		return s, "", errNoSiteInSession
	}

	return s, site, nil
}
