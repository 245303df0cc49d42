package services

import (
	"context"
	"errors"

	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"golang.org/x/oauth2"
)

// WebflowAPI is the part of the Webflow client the services use.
// *webflow.Client implements it.
type WebflowAPI interface {
	ClientID() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	AuthorizedUser(ctx context.Context, accessToken string) (*webflow.User, error)
	ListSites(ctx context.Context, accessToken string) ([]webflow.Site, error)
	GetSite(ctx context.Context, accessToken, siteID string) (*webflow.Site, error)
	ListRegisteredScripts(ctx context.Context, accessToken, siteID string) ([]webflow.RegisteredScript, error)
	RegisterHostedScript(ctx context.Context, accessToken, siteID string, req webflow.HostedScriptRequest) (*webflow.RegisteredScript, error)
	GetSiteCustomCode(ctx context.Context, accessToken, siteID string) (*webflow.SiteCustomCode, error)
	UpsertSiteCustomCode(ctx context.Context, accessToken, siteID string, code webflow.SiteCustomCode) (*webflow.SiteCustomCode, error)
}

var _ WebflowAPI = (*webflow.Client)(nil)

// siteAccessToken returns the site's stored Webflow token, falling back to
// the Webflow access token bound to the caller's session.
func siteAccessToken(ctx context.Context, authData domain.AuthDataRepository, siteID, fallbackAccessToken string) (string, error) {
	data, err := authData.Get(ctx, siteID)
	switch {
	case err == nil && data.AccessToken != "":
		return data.AccessToken, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return "", err
	case fallbackAccessToken != "":
		return fallbackAccessToken, nil
	default:
		return "", ErrSiteNotAuthorized
	}
}
