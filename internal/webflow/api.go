package webflow

import (
	"context"
	"net/http"
)

// AuthorizedUser returns the user behind accessToken.
func (c *Client) AuthorizedUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.do(ctx, accessToken, http.MethodGet, "/token/authorized_by", nil, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// ListSites returns the sites the token is authorized for.
func (c *Client) ListSites(ctx context.Context, accessToken string) ([]Site, error) {
	var resp struct {
		Sites []Site `json:"sites"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, "/sites", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Sites, nil
}

func (c *Client) GetSite(ctx context.Context, accessToken, siteID string) (*Site, error) {
	var site Site
	if err := c.do(ctx, accessToken, http.MethodGet, sitePath(siteID, ""), nil, &site); err != nil {
		return nil, err
	}

	return &site, nil
}

func (c *Client) ListRegisteredScripts(ctx context.Context, accessToken, siteID string) ([]RegisteredScript, error) {
	var resp struct {
		RegisteredScripts []RegisteredScript `json:"registeredScripts"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, sitePath(siteID, "/registered_scripts"), nil, &resp); err != nil {
		return nil, err
	}

	return resp.RegisteredScripts, nil
}

func (c *Client) RegisterHostedScript(ctx context.Context, accessToken, siteID string, req HostedScriptRequest) (*RegisteredScript, error) {
	var script RegisteredScript
	if err := c.do(ctx, accessToken, http.MethodPost, sitePath(siteID, "/registered_scripts/hosted"), req, &script); err != nil {
		return nil, err
	}

	return &script, nil
}

func (c *Client) GetSiteCustomCode(ctx context.Context, accessToken, siteID string) (*SiteCustomCode, error) {
	var code SiteCustomCode
	if err := c.do(ctx, accessToken, http.MethodGet, sitePath(siteID, "/custom_code"), nil, &code); err != nil {
		return nil, err
	}

	return &code, nil
}

// UpsertSiteCustomCode replaces the full list of scripts applied to a site.
func (c *Client) UpsertSiteCustomCode(ctx context.Context, accessToken, siteID string, code SiteCustomCode) (*SiteCustomCode, error) {
	var out SiteCustomCode
	if err := c.do(ctx, accessToken, http.MethodPut, sitePath(siteID, "/custom_code"), code, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
