package webflow

import "time"

// User is the account that authorized the token.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type CustomDomain struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Site struct {
	ID            string         `json:"id"`
	WorkspaceID   string         `json:"workspaceId,omitempty"`
	DisplayName   string         `json:"displayName"`
	ShortName     string         `json:"shortName"`
	PreviewURL    string         `json:"previewUrl,omitempty"`
	LastPublished *time.Time     `json:"lastPublished,omitempty"`
	CustomDomains []CustomDomain `json:"customDomains"`
}

// StagingHost is the site's webflow.io hostname, or "" without a short name.
func (s *Site) StagingHost() string {
	if s.ShortName == "" {
		return ""
	}

	return s.ShortName + ".webflow.io"
}

// Hosts returns the staging host followed by every custom domain.
func (s *Site) Hosts() []string {
	hosts := make([]string, 0, len(s.CustomDomains)+1)
	if h := s.StagingHost(); h != "" {
		hosts = append(hosts, h)
	}
	for _, d := range s.CustomDomains {
		if d.URL != "" {
			hosts = append(hosts, d.URL)
		}
	}

	return hosts
}

// RegisteredScript is a script registered with a site.
type RegisteredScript struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	HostedLocation string `json:"hostedLocation"`
	IntegrityHash  string `json:"integrityHash,omitempty"`
	Version        string `json:"version"`
	CanCopy        bool   `json:"canCopy"`
}

// HostedScriptRequest registers a script hosted outside Webflow.
type HostedScriptRequest struct {
	HostedLocation string `json:"hostedLocation"`
	IntegrityHash  string `json:"integrityHash,omitempty"`
	Version        string `json:"version"`
	DisplayName    string `json:"displayName"`
	CanCopy        bool   `json:"canCopy"`
}

// Script locations on a page.
const (
	LocationHeader = "header"
	LocationFooter = "footer"
)

// AppliedScript is a registered script attached to site custom code.
type AppliedScript struct {
	ID         string            `json:"id"`
	Location   string            `json:"location"`
	Version    string            `json:"version"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type SiteCustomCode struct {
	Scripts []AppliedScript `json:"scripts"`
}
