// Package echo serves the HTTP API with labstack echo.
package echo

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contrastkit/contrastkit/api"
	"github.com/contrastkit/contrastkit/cache"
	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/internal/ratelimit"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/middleware"
	"github.com/contrastkit/contrastkit/services"
)

// Routes that are never rate limited.
var alwaysExempt = []string{"/api/auth/authorize", "/api/auth/callback"}

// Deps are the collaborators of the API.
type Deps struct {
	Auth          *services.AuthService
	Settings      *services.SettingsService
	Scripts       *services.ScriptService
	Billing       *services.BillingService
	WebflowHooks  *services.WebflowWebhookService
	Authenticator *middleware.Authenticator
	Limiter       ratelimit.Limiter
	Store         cache.Store
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Logger        log.Logger
}

// Config holds HTTP level settings.
type Config struct {
	// PublicBaseURL is where widget scripts fetch their config from.
	PublicBaseURL string
	// ExtensionOrigin is the Designer Extension origin the OAuth popup posts
	// the session token to. Defaults to PublicBaseURL.
	ExtensionOrigin string
	RateLimitExempt []string
}

// WidgetAPI holds the handlers of the accessibility widget backend.
type WidgetAPI struct {
	Deps
	cfg Config
}

// NewWidgetAPI creates the API.
func NewWidgetAPI(deps Deps, cfg Config) *WidgetAPI {
	if deps.Logger == nil {
		deps.Logger = log.NewNop()
	}
	deps.Logger = deps.Logger.With(log.Fields{"component": "http"})
	if cfg.ExtensionOrigin == "" {
		cfg.ExtensionOrigin = cfg.PublicBaseURL
	}

	return &WidgetAPI{Deps: deps, cfg: cfg}
}

// NewEcho returns an echo instance with the middleware chain and every
// route registered.
func (a *WidgetAPI) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = a.HTTPErrorHandler

	exempt := append(append([]string{}, alwaysExempt...), a.cfg.RateLimitExempt...)

	e.Pre(middleware.Preflight())
	e.Use(
		middleware.RequestID(),
		middleware.Trace(),
		middleware.RequestLogger(a.Logger, a.Metrics),
		middleware.Recover(a.Logger),
		middleware.SecurityHeaders(),
		middleware.RateLimit(a.Limiter, exempt, a.Logger, a.Metrics),
	)

	a.RegisterRoutes(e)

	return e
}

// RegisterRoutes registers the API routes.
func (a *WidgetAPI) RegisterRoutes(e *echo.Echo) {
	session := a.Authenticator.RequireSession()

	e.GET("/api/auth/authorize", a.AuthorizeHandler)
	e.GET("/api/auth/callback", a.CallbackHandler)
	e.POST("/api/auth/token", a.TokenHandler)
	e.GET("/api/auth/verify", a.VerifyHandler)

	e.GET("/api/accessibility/settings", a.GetSettingsHandler, session)
	e.POST("/api/accessibility/settings", a.UpdateSettingsHandler, session)
	e.PUT("/api/accessibility/settings", a.UpdateSettingsHandler, session)
	e.GET("/api/accessibility/config", a.ConfigHandler)
	e.GET("/api/accessibility/domain-lookup", a.DomainLookupHandler)
	e.POST("/api/accessibility/publish", a.PublishHandler, session)
	e.POST("/api/accessibility/save-custom-domain", a.SaveCustomDomainHandler, session)
	e.POST("/api/accessibility/register-script", a.RegisterScriptHandler, session)
	e.POST("/api/accessibility/apply-script", a.ApplyScriptHandler, session)

	e.POST("/api/accessibility/create-trial", a.CreateTrialHandler, session)
	e.GET("/api/accessibility/payment-status", a.PaymentStatusHandler)
	e.GET("/api/accessibility/validate-domain", a.ValidateDomainHandler)
	e.POST("/api/accessibility/setup-payment", a.SetupPaymentHandler, session)
	e.POST("/api/accessibility/create-subscription", a.CreateSubscriptionHandler, session)
	e.POST("/api/accessibility/create-payment-intent", a.CreatePaymentIntentHandler, session)
	e.POST("/api/accessibility/cancel-subscription", a.CancelSubscriptionHandler, session)
	e.GET("/api/accessibility/subscription-status", a.SubscriptionStatusHandler, session)

	e.POST("/api/stripe/webhook", a.StripeWebhookHandler)
	e.POST("/api/webflow/webhook", a.WebflowWebhookHandler)

	e.GET("/widget.js", a.WidgetHandler)
	e.GET("/health", a.HealthHandler)
	if a.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{})))
	}
}

// HTTPErrorHandler answers unknown routes and methods with the plain text
// banner and everything else with a JSON error.
func (a *WidgetAPI) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			c.Response().Header().Del(echo.HeaderAllow)
			_ = c.String(http.StatusOK, api.FallbackBody)
		default:
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			_ = c.JSON(he.Code, apierrors.New(he.Code, msg))
		}

		return
	}

	_ = a.fail(c, err)
}

// fail writes err as a JSON error body.
func (a *WidgetAPI) fail(c echo.Context, err error) error {
	apiErr := toAPIError(err)
	ctx := c.Request().Context()
	fields := log.Fields{
		"path":   c.Request().URL.Path,
		"status": apiErr.Status,
	}

	if apiErr.Status >= http.StatusInternalServerError {
		a.Logger.Error(ctx, apiErr.Message, err, fields)
	} else {
		fields["reason"] = err.Error()
		a.Logger.Warn(ctx, apiErr.Message, fields)
	}

	return c.JSON(apiErr.Status, apiErr)
}

// HealthHandler reports the service and KV store status.
func (a *WidgetAPI) HealthHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	if err := a.Store.Ping(ctx); err != nil {
		a.Logger.Error(ctx, "KV store ping failed", err)
		return c.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "degraded", KV: "error"})
	}

	return c.JSON(http.StatusOK, api.HealthResponse{Status: "ok", KV: "ok"})
}
