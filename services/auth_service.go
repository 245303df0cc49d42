package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/repository"
	"github.com/contrastkit/contrastkit/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OAuth flows. The designer flow runs in a popup opened by the extension,
// the install flow starts from the Webflow marketplace.
const (
	FlowDesigner = "designer"
	FlowInstall  = "install"
)

// AuthState is carried through the consent screen in the state parameter.
type AuthState struct {
	Flow   string `json:"flow"`
	SiteID string `json:"siteId,omitempty"`
	Nonce  string `json:"nonce"`
}

// EncodeState returns base64url(JSON(state)).
func EncodeState(state AuthState) string {
	raw, _ := json.Marshal(state)
	return session.EncodeSegment(raw)
}

// DecodeState parses a state parameter. Anything malformed is an install
// flow without a site hint.
func DecodeState(raw string) AuthState {
	var state AuthState

	b, err := session.DecodeSegment(raw)
	if err != nil || json.Unmarshal(b, &state) != nil {
		return AuthState{Flow: FlowInstall}
	}
	if state.Flow != FlowDesigner {
		state.Flow = FlowInstall
	}

	return state
}

// SessionResult is a freshly minted session.
type SessionResult struct {
	SessionToken string       `json:"sessionToken"`
	Exp          int64        `json:"exp"`
	User         session.User `json:"user"`
	SiteID       string       `json:"siteId"`
}

// CallbackResult is the outcome of a completed OAuth callback.
type CallbackResult struct {
	SessionResult
	Flow      string
	SiteName  string
	ShortName string
	// RedirectURL is the designer URL to send install flows to.
	RedirectURL string
}

// AuthService runs the Webflow OAuth flow and mints session tokens.
type AuthService struct {
	webflow WebflowAPI
	signer  *session.Signer
	repos   *repository.Repositories
	events  events.Publisher
	logger  log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAuthService(
	wf WebflowAPI,
	signer *session.Signer,
	repos *repository.Repositories,
	publisher events.Publisher,
	logger log.Logger,
	m *metrics.Metrics,
) *AuthService {
	return &AuthService{
		webflow: wf,
		signer:  signer,
		repos:   repos,
		events:  publisher,
		logger:  logger.With(log.Fields{"component": "auth"}),
		metrics: m,
		now:     time.Now,
	}
}

// AuthorizeURL returns the Webflow consent URL for flow. Unknown flows are
// treated as installs.
func (s *AuthService) AuthorizeURL(flow, siteID string) string {
	if flow != FlowDesigner {
		flow = FlowInstall
	}

	return s.webflow.AuthCodeURL(EncodeState(AuthState{
		Flow:   flow,
		SiteID: siteID,
		Nonce:  uuid.NewString(),
	}))
}

// Callback completes the OAuth flow: it stores the authorization, seeds the
// site's settings and domain mappings, and opens a session for the user.
func (s *AuthService) Callback(ctx context.Context, code, rawState string) (*CallbackResult, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	state := DecodeState(rawState)

	token, err := s.webflow.Exchange(ctx, code)
	s.metrics.Upstream("webflow", err)
	if err != nil {
		return nil, err
	}
	accessToken := token.AccessToken

	user, err := s.webflow.AuthorizedUser(ctx, accessToken)
	s.metrics.Upstream("webflow", err)
	if err != nil {
		return nil, fmt.Errorf("fetch authorized user: %w", err)
	}

	sites, err := s.webflow.ListSites(ctx, accessToken)
	s.metrics.Upstream("webflow", err)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	site, err := pickSite(sites, state.SiteID)
	if err != nil {
		return nil, err
	}

	wfUser := domain.WebflowUser{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	scope, _ := token.Extra("scope").(string)
	if err := s.storeAuthData(ctx, site, wfUser, accessToken, scope); err != nil {
		return nil, err
	}

	if _, _, err := s.repos.Settings.Init(ctx, site.ID, map[string]interface{}{
		domain.SettingsSiteName: site.DisplayName,
	}); err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}

	for _, host := range site.Hosts() {
		if err := s.repos.Domains.PutWithTTL(ctx, host, site.ID, repository.DomainTTL); err != nil {
			return nil, fmt.Errorf("map domain %s: %w", host, err)
		}
	}

	sess, err := s.openSession(ctx, session.User{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
	}, wfUser, site.ID, accessToken)
	if err != nil {
		return nil, err
	}

	_ = s.events.Publish(ctx, events.New(events.TypeAppAuthorized, site.ID, map[string]interface{}{
		"userId":    user.ID,
		"flow":      state.Flow,
		"shortName": site.ShortName,
	}))

	s.logger.Info(ctx, "Site authorized", log.Fields{
		"site_id": site.ID,
		"user_id": user.ID,
		"flow":    state.Flow,
	})

	result := &CallbackResult{
		SessionResult: *sess,
		Flow:          state.Flow,
		SiteName:      site.DisplayName,
		ShortName:     site.ShortName,
	}
	if state.Flow == FlowInstall {
		result.RedirectURL = fmt.Sprintf("https://%s.design.webflow.com?app=%s",
			site.ShortName, url.QueryEscape(s.webflow.ClientID()))
	}

	return result, nil
}

func pickSite(sites []webflow.Site, hint string) (*webflow.Site, error) {
	if len(sites) == 0 {
		return nil, webflow.ErrNoSites
	}
	for i := range sites {
		if hint != "" && sites[i].ID == hint {
			return &sites[i], nil
		}
	}

	return &sites[0], nil
}

func (s *AuthService) storeAuthData(ctx context.Context, site *webflow.Site, user domain.WebflowUser, accessToken, scope string) error {
	now := s.now().UTC()
	data := &domain.AuthData{
		SiteID:      site.ID,
		SiteName:    site.DisplayName,
		ShortName:   site.ShortName,
		AccessToken: accessToken,
		Scope:       scope,
		User:        user,
		InstalledAt: now,
	}

	existing, err := s.repos.AuthData.Get(ctx, site.ID)
	switch {
	case err == nil:
		data.InstalledAt = existing.InstalledAt
		data.RefreshedAt = &now
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("load auth data: %w", err)
	}

	if err := s.repos.AuthData.Put(ctx, data); err != nil {
		return fmt.Errorf("store auth data: %w", err)
	}

	return nil
}

// openSession mints a token and writes the user-auth record that makes it
// valid.
func (s *AuthService) openSession(ctx context.Context, user session.User, wfUser domain.WebflowUser, siteID, accessToken string) (*SessionResult, error) {
	token, exp, err := s.signer.Mint(user, siteID)
	if err != nil {
		return nil, fmt.Errorf("mint session token: %w", err)
	}

	err = s.repos.UserAuth.PutWithTTL(ctx, &domain.UserAuth{
		UserID:      user.ID,
		User:        wfUser,
		SiteID:      siteID,
		AccessToken: accessToken,
		ExpiresAt:   exp,
		CreatedAt:   s.now().UTC(),
	}, s.signer.TTL())
	if err != nil {
		return nil, fmt.Errorf("store user auth: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SessionTokensMinted.Inc()
	}

	return &SessionResult{SessionToken: token, Exp: exp, User: user, SiteID: siteID}, nil
}

// ExchangeIDToken trades a Designer ID token for a session token. The ID
// token's signature is not checked.
func (s *AuthService) ExchangeIDToken(ctx context.Context, idToken, siteID string) (*SessionResult, error) {
	if idToken == "" {
		return nil, ErrInvalidIDToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	user := userFromClaims(claims)
	if user.ID == "" {
		return nil, fmt.Errorf("%w: no user id", ErrInvalidIDToken)
	}
	if siteID == "" {
		siteID = claimString(claims, "siteId")
	}

	s.logger.Warn(ctx, "Accepted unverified Designer ID token", log.Fields{
		"user_id": user.ID,
		"site_id": siteID,
	})

	var accessToken string
	if siteID != "" {
		data, err := s.repos.AuthData.Get(ctx, siteID)
		switch {
		case err == nil:
			accessToken = data.AccessToken
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("load auth data: %w", err)
		}
	}

	return s.openSession(ctx, user, domain.WebflowUser{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
	}, siteID, accessToken)
}

// userFromClaims reads the user from a nested "user" claim, or from the
// top-level id/sub, email and firstName claims.
func userFromClaims(claims jwt.MapClaims) session.User {
	if nested, ok := claims["user"].(map[string]interface{}); ok {
		u := session.User{
			ID:        claimString(nested, "id"),
			Email:     claimString(nested, "email"),
			FirstName: claimString(nested, "firstName"),
		}
		if u.ID != "" {
			return u
		}
	}

	id := claimString(claims, "id")
	if id == "" {
		id = claimString(claims, "sub")
	}

	return session.User{
		ID:        id,
		Email:     claimString(claims, "email"),
		FirstName: claimString(claims, "firstName"),
	}
}

func claimString(claims map[string]interface{}, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
