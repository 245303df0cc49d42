package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/contrastkit/contrastkit/api"
	"github.com/contrastkit/contrastkit/services"
)

func (a *WidgetAPI) GetSettingsHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	settings, err := a.Settings.Get(c.Request().Context(), siteID)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, settings)
}

// UpdateSettingsHandler merges customization, accessibilityProfiles and
// customDomain from the body into the session site's settings.
func (a *WidgetAPI) UpdateSettingsHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	body := map[string]interface{}{}
	if err := bind(c, &body); err != nil {
		return a.fail(c, err)
	}

	settings, err := a.Settings.Update(c.Request().Context(), siteID, body)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, settings)
}

// ConfigHandler serves the public widget configuration.
func (a *WidgetAPI) ConfigHandler(c echo.Context) error {
	cfg, err := a.Settings.Config(c.Request().Context(), c.QueryParam("siteId"))
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, cfg)
}

func (a *WidgetAPI) DomainLookupHandler(c echo.Context) error {
	mapping, err := a.Settings.LookupDomain(c.Request().Context(), c.QueryParam("domain"))
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, api.DomainLookupResponse{SiteID: mapping.SiteID, Domain: mapping.Domain})
}

func (a *WidgetAPI) PublishHandler(c echo.Context) error {
	s, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	body := map[string]interface{}{}
	if err := bind(c, &body); err != nil {
		return a.fail(c, err)
	}

	settings, err := a.Settings.Publish(c.Request().Context(), siteID, s.AccessToken(), body)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, settings)
}

func (a *WidgetAPI) SaveCustomDomainHandler(c echo.Context) error {
	_, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	var req api.CustomDomainRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}

	settings, err := a.Settings.SaveCustomDomain(c.Request().Context(), siteID, req.CustomDomain, req.Customization)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, settings)
}

func (a *WidgetAPI) RegisterScriptHandler(c echo.Context) error {
	s, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	script, created, err := a.Scripts.RegisterScript(c.Request().Context(), siteID, s.AccessToken())
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, api.ScriptResponse{Success: true, Created: created, Result: script})
}

func (a *WidgetAPI) ApplyScriptHandler(c echo.Context) error {
	s, siteID, err := sessionSite(c)
	if err != nil {
		return a.fail(c, err)
	}

	var req api.ApplyScriptRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}

	code, changed, err := a.Scripts.ApplyScript(c.Request().Context(), siteID, s.AccessToken(), services.ApplyRequest{
		ScriptID: req.ScriptID,
		Version:  req.Version,
		Location: req.Location,
	})
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, api.ScriptResponse{Success: true, Created: changed, Result: code})
}
