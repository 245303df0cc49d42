package services

import (
	"context"

	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/internal/webflow"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/repository"
)

// ScriptConfig describes the hosted widget script.
type ScriptConfig struct {
	HostedLocation string
	Version        string
	IntegrityHash  string
	DisplayName    string
}

// ScriptService registers the widget script with a site and attaches it to
// the site's custom code.
type ScriptService struct {
	webflow WebflowAPI
	repos   *repository.Repositories
	cfg     ScriptConfig
	logger  log.Logger
	metrics *metrics.Metrics
}

func NewScriptService(wf WebflowAPI, repos *repository.Repositories, cfg ScriptConfig, logger log.Logger, m *metrics.Metrics) *ScriptService {
	return &ScriptService{
		webflow: wf,
		repos:   repos,
		cfg:     cfg,
		logger:  logger.With(log.Fields{"component": "scripts"}),
		metrics: m,
	}
}

// RegisterScript registers the hosted widget script unless a script with the
// same hosted location is already registered. It reports whether a new
// registration was made.
func (s *ScriptService) RegisterScript(ctx context.Context, siteID, fallbackAccessToken string) (*webflow.RegisteredScript, bool, error) {
	if siteID == "" {
		return nil, false, ErrSiteRequired
	}

	accessToken, err := siteAccessToken(ctx, s.repos.AuthData, siteID, fallbackAccessToken)
	if err != nil {
		return nil, false, err
	}

	return s.register(ctx, siteID, accessToken)
}

func (s *ScriptService) register(ctx context.Context, siteID, accessToken string) (*webflow.RegisteredScript, bool, error) {
	scripts, err := s.webflow.ListRegisteredScripts(ctx, accessToken, siteID)
	s.metrics.Upstream("webflow", err)
	if err != nil {
		return nil, false, err
	}
	for i := range scripts {
		if scripts[i].HostedLocation == s.cfg.HostedLocation {
			return &scripts[i], false, nil
		}
	}

	script, err := s.webflow.RegisterHostedScript(ctx, accessToken, siteID, webflow.HostedScriptRequest{
		HostedLocation: s.cfg.HostedLocation,
		IntegrityHash:  s.cfg.IntegrityHash,
		Version:        s.cfg.Version,
		DisplayName:    s.cfg.DisplayName,
	})
	s.metrics.Upstream("webflow", err)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info(ctx, "Registered widget script", log.Fields{"site_id": siteID, "script_id": script.ID})

	return script, true, nil
}

// ApplyRequest selects the script to attach. An empty ScriptID attaches the
// registered widget script, registering it first when needed.
type ApplyRequest struct {
	ScriptID string
	Version  string
	Location string
}

// ApplyScript adds the script to the site's custom code unless a script with
// the same id is already applied. It returns the resulting custom code and
// whether it changed.
func (s *ScriptService) ApplyScript(ctx context.Context, siteID, fallbackAccessToken string, req ApplyRequest) (*webflow.SiteCustomCode, bool, error) {
	if siteID == "" {
		return nil, false, ErrSiteRequired
	}

	location := req.Location
	if location == "" {
		location = webflow.LocationFooter
	}
	if location != webflow.LocationHeader && location != webflow.LocationFooter {
		return nil, false, ErrInvalidLocation
	}

	accessToken, err := siteAccessToken(ctx, s.repos.AuthData, siteID, fallbackAccessToken)
	if err != nil {
		return nil, false, err
	}

	scriptID, version := req.ScriptID, req.Version
	if scriptID == "" {
		script, _, err := s.register(ctx, siteID, accessToken)
		if err != nil {
			return nil, false, err
		}
		scriptID, version = script.ID, script.Version
	}
	if version == "" {
		version = s.cfg.Version
	}

	current, err := s.webflow.GetSiteCustomCode(ctx, accessToken, siteID)
	s.metrics.Upstream("webflow", err)
	if err != nil {
		return nil, false, err
	}
	for _, applied := range current.Scripts {
		if applied.ID == scriptID {
			return current, false, nil
		}
	}

	scripts := append(current.Scripts, webflow.AppliedScript{
		ID:       scriptID,
		Location: location,
		Version:  version,
	})
	updated, err := s.webflow.UpsertSiteCustomCode(ctx, accessToken, siteID, webflow.SiteCustomCode{Scripts: scripts})
	s.metrics.Upstream("webflow", err)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info(ctx, "Applied widget script", log.Fields{
		"site_id":   siteID,
		"script_id": scriptID,
		"location":  location,
	})

	return updated, true, nil
}
