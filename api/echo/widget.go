package echo

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/services"
	"github.com/contrastkit/contrastkit/widget"
)

// widgetHost is the host the widget is requested for: the domain query
// parameter, else the embedding page's host.
func widgetHost(c echo.Context) string {
	if d := c.QueryParam("domain"); d != "" {
		return d
	}
	if ref := c.Request().Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			return u.Host
		}
	}

	return ""
}

// WidgetHandler serves the widget script, or the payment-required banner
// when the site cannot be resolved or has no access.
func (a *WidgetAPI) WidgetHandler(c echo.Context) error {
	ctx := c.Request().Context()

	variant := widget.VariantPaymentRequired
	siteID, err := a.Billing.ResolveSite(ctx, c.QueryParam("siteId"), widgetHost(c))
	switch {
	case err == nil:
		ok, accessErr := a.Billing.Access(ctx, siteID)
		if accessErr != nil {
			a.Logger.Error(ctx, "Failed to check widget access", accessErr, log.Fields{"site_id": siteID})
		}
		if ok {
			variant = widget.VariantEnabled
		}
	case errors.Is(err, services.ErrSiteRequired), errors.Is(err, services.ErrDomainNotFound):
	default:
		a.Logger.Error(ctx, "Failed to resolve widget site", err)
	}

	if a.Metrics != nil {
		a.Metrics.WidgetServedTotal.WithLabelValues(variant).Inc()
	}

	c.Response().Header().Set(echo.HeaderCacheControl, widget.CacheControl)

	return c.Blob(http.StatusOK, widget.ContentType, widget.Render(variant, widget.Bootstrap{
		SiteID:  siteID,
		APIBase: a.cfg.PublicBaseURL,
	}))
}
