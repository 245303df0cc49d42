package echo

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/contrastkit/contrastkit/api"
	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/contrastkit/contrastkit/middleware"
	"github.com/contrastkit/contrastkit/services"
)

var authSuccessPage = template.Must(template.New("auth-success").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authorization complete</title></head>
<body>
<p>Authorization complete. You can close this window.</p>
<script>
(function () {
  var message = {{.Message}};
  if (window.opener) {
    window.opener.postMessage(message, {{.TargetOrigin}});
  }
  window.close();
})();
</script>
</body>
</html>
`))

// authSuccessData feeds authSuccessPage. Only TargetOrigin may receive the
// session token.
type authSuccessData struct {
	Message      api.AuthSuccessMessage
	TargetOrigin string
}

// AuthorizeHandler redirects to the Webflow consent screen.
func (a *WidgetAPI) AuthorizeHandler(c echo.Context) error {
	return c.Redirect(http.StatusFound, a.Auth.AuthorizeURL(c.QueryParam("flow"), c.QueryParam("siteId")))
}

// CallbackHandler completes the OAuth flow. Designer popups get a page that
// hands the session to the opener; installs are redirected to the Designer.
func (a *WidgetAPI) CallbackHandler(c echo.Context) error {
	if msg := c.QueryParam("error"); msg != "" {
		return a.fail(c, apierrors.BadRequest("Authorization denied").WithDetails(msg))
	}

	res, err := a.Auth.Callback(c.Request().Context(), c.QueryParam("code"), c.QueryParam("state"))
	if err != nil {
		return a.fail(c, err)
	}

	if res.Flow == services.FlowInstall {
		return c.Redirect(http.StatusFound, res.RedirectURL)
	}

	var page bytes.Buffer
	err = authSuccessPage.Execute(&page, authSuccessData{
		Message: api.AuthSuccessMessage{
			Type:         api.AuthSuccessType,
			SessionToken: res.SessionToken,
			User:         res.User,
			SiteID:       res.SiteID,
			Exp:          res.Exp,
		},
		TargetOrigin: a.cfg.ExtensionOrigin,
	})
	if err != nil {
		return a.fail(c, err)
	}

	return c.HTMLBlob(http.StatusOK, page.Bytes())
}

// TokenHandler exchanges a Designer ID token for a session token.
func (a *WidgetAPI) TokenHandler(c echo.Context) error {
	var req api.TokenRequest
	if err := bind(c, &req); err != nil {
		return a.fail(c, err)
	}

	res, err := a.Auth.ExchangeIDToken(c.Request().Context(), req.IDToken, req.SiteID)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

// VerifyHandler reports whether the bearer token is a live session.
func (a *WidgetAPI) VerifyHandler(c echo.Context) error {
	ctx := c.Request().Context()
	header := c.Request().Header.Get(echo.HeaderAuthorization)

	s, err := a.Authenticator.Authenticate(ctx, header)
	if err != nil {
		a.Authenticator.LogFailure(ctx, header, err)
		if middleware.IsStoreFailure(err) {
			return a.fail(c, err)
		}

		return c.JSON(http.StatusUnauthorized, api.VerifyResponse{Error: "Unauthorized"})
	}

	user := s.Claims.User

	return c.JSON(http.StatusOK, api.VerifyResponse{
		Authenticated: true,
		User:          &user,
		SiteID:        s.SiteID(),
		Exp:           s.Claims.Exp,
	})
}
