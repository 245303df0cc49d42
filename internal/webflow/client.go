// Package webflow is a small client for the Webflow OAuth flow and the
// Data API v2 endpoints the app needs.
package webflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	AuthorizeEndpoint = "https://webflow.com/oauth/authorize"
	TokenEndpoint     = "https://api.webflow.com/oauth/access_token"
	APIBaseURL        = "https://api.webflow.com/v2"
)

var (
	ErrMisconfigured  = errors.New("webflow: client id and secret are required")
	ErrExchangeFailed = errors.New("webflow: failed to exchange authorization code")
	ErrNoSites        = errors.New("webflow: token has no authorized sites")
)

// DefaultScopes are requested when the config lists none.
var DefaultScopes = []string{
	"sites:read", "sites:write", "custom_code:read", "custom_code:write", "authorized_user:read",
}

// APIError is a non-2xx response from the Data API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("webflow: status %d: %s", e.StatusCode, e.Body)
}

// Config holds the app credentials. Empty endpoints fall back to the package
// level defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string
	Scopes       []string
	Timeout      time.Duration
}

// Client talks to Webflow on behalf of an installed site.
type Client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewClient creates a new Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMisconfigured
	}

	authURL := firstNonEmpty(cfg.AuthorizeURL, AuthorizeEndpoint)
	tokenURL := firstNonEmpty(cfg.TokenURL, TokenEndpoint)
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: strings.TrimRight(firstNonEmpty(cfg.APIBaseURL, APIBaseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// ClientID returns the app client id.
func (c *Client) ClientID() string {
	return c.oauth.ClientID
}

// AuthCodeURL returns the consent URL carrying state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	return token, nil
}

func (c *Client) apiClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

func (c *Client) do(ctx context.Context, accessToken, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("webflow: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("webflow: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.apiClient(ctx, accessToken).Do(req)
	if err != nil {
		return fmt.Errorf("webflow: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("webflow: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("webflow: failed to decode %s response: %w", path, err)
	}

	return nil
}

func sitePath(siteID, suffix string) string {
	return "/sites/" + url.PathEscape(siteID) + suffix
}
