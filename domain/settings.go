package domain

// Settings keys with special merge or read semantics.
const (
	SettingsSiteID                = "siteId"
	SettingsSiteName              = "siteName"
	SettingsCustomization         = "customization"
	SettingsAccessibilityProfiles = "accessibilityProfiles"
	SettingsCustomDomain          = "customDomain"
	SettingsPaymentStatus         = "paymentStatus"
	SettingsPublishedAt           = "publishedAt"
	SettingsLastPublished         = "lastPublished"
	SettingsLastUpdated           = "lastUpdated"
	SettingsLastUsed              = "lastUsed"
	SettingsCreatedAt             = "createdAt"
)

// Settings is the canonical widget configuration stored under
// accessibility-settings:<siteId>. It is kept as a generic map so fields
// written by other clients survive a merge.
type Settings map[string]interface{}

func (s Settings) str(key string) string {
	v, _ := s[key].(string)
	return v
}

func (s Settings) obj(key string) map[string]interface{} {
	if v, ok := s[key].(map[string]interface{}); ok {
		return v
	}

	return map[string]interface{}{}
}

func (s Settings) SiteID() string       { return s.str(SettingsSiteID) }
func (s Settings) SiteName() string     { return s.str(SettingsSiteName) }
func (s Settings) CustomDomain() string { return s.str(SettingsCustomDomain) }
func (s Settings) PublishedAt() string  { return s.str(SettingsPublishedAt) }

// Customization returns the customization map, never nil.
func (s Settings) Customization() map[string]interface{} {
	return s.obj(SettingsCustomization)
}

// AccessibilityProfiles returns the profiles map, never nil.
func (s Settings) AccessibilityProfiles() map[string]interface{} {
	return s.obj(SettingsAccessibilityProfiles)
}
