package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contrastkit/contrastkit/domain"
	"github.com/contrastkit/contrastkit/internal/events"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/repository"
)

// patchableKeys are the settings fields callers may write.
var patchableKeys = []string{
	domain.SettingsCustomization,
	domain.SettingsAccessibilityProfiles,
	domain.SettingsCustomDomain,
}

// SettingsPatch keeps only the writable fields of a request body.
func SettingsPatch(body map[string]interface{}) map[string]interface{} {
	patch := make(map[string]interface{}, len(patchableKeys))
	for _, k := range patchableKeys {
		if v, ok := body[k]; ok {
			patch[k] = v
		}
	}

	return patch
}

// WidgetConfig is the public view of a site's settings.
type WidgetConfig struct {
	SiteID                string                 `json:"siteId"`
	Customization         map[string]interface{} `json:"customization"`
	AccessibilityProfiles map[string]interface{} `json:"accessibilityProfiles"`
	CustomDomain          string                 `json:"customDomain,omitempty"`
	PublishedAt           string                 `json:"publishedAt,omitempty"`
}

// SettingsService reads and writes widget settings and hostname mappings.
type SettingsService struct {
	webflow WebflowAPI
	repos   *repository.Repositories
	events  events.Publisher
	logger  log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewSettingsService(
	wf WebflowAPI,
	repos *repository.Repositories,
	publisher events.Publisher,
	logger log.Logger,
	m *metrics.Metrics,
) *SettingsService {
	return &SettingsService{
		webflow: wf,
		repos:   repos,
		events:  publisher,
		logger:  logger.With(log.Fields{"component": "settings"}),
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the stored settings of a site.
func (s *SettingsService) Get(ctx context.Context, siteID string) (domain.Settings, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}

	settings, err := s.repos.Settings.Get(ctx, siteID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrSiteNotFound
	}

	return settings, err
}

// Update merges the writable fields of body into the site's settings.
func (s *SettingsService) Update(ctx context.Context, siteID string, body map[string]interface{}) (domain.Settings, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}

	return s.repos.Settings.Merge(ctx, siteID, SettingsPatch(body))
}

// Config returns the public widget configuration of a site.
func (s *SettingsService) Config(ctx context.Context, siteID string) (*WidgetConfig, error) {
	settings, err := s.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}

	return &WidgetConfig{
		SiteID:                siteID,
		Customization:         settings.Customization(),
		AccessibilityProfiles: settings.AccessibilityProfiles(),
		CustomDomain:          settings.CustomDomain(),
		PublishedAt:           settings.PublishedAt(),
	}, nil
}

// Publish merges body, stamps the publish time, and refreshes the site's
// hostname mappings from Webflow. A failed refresh does not fail the publish.
func (s *SettingsService) Publish(ctx context.Context, siteID, fallbackAccessToken string, body map[string]interface{}) (domain.Settings, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}

	patch := SettingsPatch(body)
	ts := s.now().UTC().Format(time.RFC3339)
	patch[domain.SettingsPublishedAt] = ts
	patch[domain.SettingsLastPublished] = ts

	settings, err := s.repos.Settings.Merge(ctx, siteID, patch)
	if err != nil {
		return nil, err
	}

	hosts := s.refreshDomains(ctx, siteID, fallbackAccessToken, settings.CustomDomain())

	_ = s.events.Publish(ctx, events.New(events.TypeSettingsPublished, siteID, map[string]interface{}{
		"publishedAt": ts,
		"domains":     hosts,
	}))

	return settings, nil
}

// refreshDomains maps the site's current hosts plus customDomain and returns
// the hosts written.
func (s *SettingsService) refreshDomains(ctx context.Context, siteID, fallbackAccessToken, customDomain string) []string {
	var hosts []string

	accessToken, err := siteAccessToken(ctx, s.repos.AuthData, siteID, fallbackAccessToken)
	if err == nil {
		site, werr := s.webflow.GetSite(ctx, accessToken, siteID)
		s.metrics.Upstream("webflow", werr)
		if werr != nil {
			s.logger.Warn(ctx, "Could not refresh site domains", log.Fields{"site_id": siteID, "error": werr.Error()})
		} else {
			hosts = site.Hosts()
		}
	} else {
		s.logger.Warn(ctx, "No access token to refresh site domains", log.Fields{"site_id": siteID, "error": err.Error()})
	}

	if customDomain != "" {
		hosts = append(hosts, customDomain)
	}

	written := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if err := s.repos.Domains.PutWithTTL(ctx, host, siteID, repository.DomainTTL); err != nil {
			s.logger.Error(ctx, "Failed to map domain", err, log.Fields{"site_id": siteID, "host": host})
			continue
		}
		written = append(written, repository.NormalizeHost(host))
	}

	return written
}

// SaveCustomDomain records a declared custom domain in both mirror records
// together with the current customization, and stores it in the settings.
func (s *SettingsService) SaveCustomDomain(ctx context.Context, siteID, customDomain string, customization map[string]interface{}) (domain.Settings, error) {
	if siteID == "" {
		return nil, ErrSiteRequired
	}
	if repository.NormalizeHost(customDomain) == "" {
		return nil, ErrDomainRequired
	}

	patch := map[string]interface{}{domain.SettingsCustomDomain: customDomain}
	if customization != nil {
		patch[domain.SettingsCustomization] = customization
	}

	settings, err := s.repos.Settings.Merge(ctx, siteID, patch)
	if err != nil {
		return nil, err
	}

	err = s.repos.CustomDomains.Save(ctx, &domain.CustomDomainData{
		SiteID:                siteID,
		CustomDomain:          repository.NormalizeHost(customDomain),
		Customization:         settings.Customization(),
		AccessibilityProfiles: settings.AccessibilityProfiles(),
		UpdatedAt:             s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("save custom domain: %w", err)
	}

	return settings, nil
}

// LookupDomain resolves a hostname to a site. A mapping whose site has no
// settings is treated as a miss.
func (s *SettingsService) LookupDomain(ctx context.Context, host string) (*domain.DomainMapping, error) {
	if repository.NormalizeHost(host) == "" {
		return nil, ErrDomainRequired
	}

	mapping, err := s.repos.Domains.Lookup(ctx, host)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.repos.Settings.Exists(ctx, mapping.SiteID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDomainNotFound
	}

	return mapping, nil
}
