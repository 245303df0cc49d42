package repository

import "strings"

// Key prefixes of every record in the KV store. The separators are not
// uniform and must not be changed: existing data is keyed this way.
const (
	prefixAuthData         = "auth-data:"
	prefixSettings         = "accessibility-settings:"
	prefixUserAuth         = "user-auth:"
	prefixLedger           = "user_data_"
	prefixPayment          = "payment:"
	prefixDomain           = "domain:"
	prefixCustomDomainData = "custom-domain-data:"
	prefixCustomDomain     = "custom-domain:"
	prefixInstallation     = "installation_"
)

func AuthDataKey(siteID string) string         { return prefixAuthData + siteID }
func SettingsKey(siteID string) string         { return prefixSettings + siteID }
func UserAuthKey(userID string) string         { return prefixUserAuth + userID }
func LedgerKey(siteID string) string           { return prefixLedger + siteID }
func PaymentKey(siteID string) string          { return prefixPayment + siteID }
func DomainKey(host string) string             { return prefixDomain + NormalizeHost(host) }
func CustomDomainDataKey(siteID string) string { return prefixCustomDomainData + siteID }
func CustomDomainKey(domain string) string     { return prefixCustomDomain + NormalizeHost(domain) }
func InstallationKey(siteID string) string     { return prefixInstallation + siteID }

// NormalizeHost lowercases a host and strips scheme, path, port and a
// trailing dot, so "https://Foo.webflow.io/page" maps to "foo.webflow.io".
func NormalizeHost(host string) string {
	h := strings.TrimSpace(strings.ToLower(host))
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	if i := strings.LastIndex(h, ":"); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}

	return strings.TrimSuffix(h, ".")
}
