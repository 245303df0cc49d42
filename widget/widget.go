// Package widget holds the embedded widget scripts served to published
// sites.
package widget

import (
	_ "embed"
	"encoding/json"
)

// Variants, also used as metric labels.
const (
	VariantEnabled         = "enabled"
	VariantPaymentRequired = "payment_required"
)

const (
	ContentType  = "application/javascript; charset=utf-8"
	CacheControl = "public, max-age=300"
)

var (
	//go:embed assets/widget.js
	enabledScript []byte

	//go:embed assets/payment_required.js
	paymentRequiredScript []byte
)

// Bootstrap is exposed to the scripts as window.ContrastKit.
type Bootstrap struct {
	SiteID  string `json:"siteId,omitempty"`
	APIBase string `json:"apiBase"`
}

// Render returns the script for variant prefixed with its bootstrap data.
// Unknown variants render the payment-required banner.
func Render(variant string, boot Bootstrap) []byte {
	script := paymentRequiredScript
	if variant == VariantEnabled {
		script = enabledScript
	}

	// json.Marshal escapes <, > and & so the prelude cannot close a script tag.
	data, _ := json.Marshal(boot)

	out := make([]byte, 0, len(data)+len(script)+32)
	out = append(out, "window.ContrastKit = "...)
	out = append(out, data...)
	out = append(out, ";\n"...)
	out = append(out, script...)

	return out
}
