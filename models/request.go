package models

// MirrorRequest is the payload for POST /api/v1/mirror.
type MirrorRequest struct {
	// URL is the page to mirror. Required.
	URL string `json:"url" binding:"required,url"`

	// Name overrides the bundle directory name under the output root.
	// Defaults to a slug derived from the URL path.
	Name string `json:"name,omitempty"`

	// Timeout is the maximum duration in seconds for the whole job
	// (rendering + fetching + persisting + rewriting).
	// Default: 120. Max: 600.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=600"`

	// Concurrency overrides the fetch worker count for this job.
	// Default: server-configured (8). Max: 32.
	Concurrency int `json:"concurrency,omitempty" binding:"omitempty,min=1,max=32"`

	// Stealth enables anti-bot-detection evasions during rendering.
	// Default: false.
	Stealth bool `json:"stealth,omitempty"`

	// FetchMode controls how the page itself is rendered.
	// "auto" (default): HTTP first, escalate to the browser when the
	// markup looks like an unrendered SPA shell.
	// "http": pure HTTP, no JavaScript rendering.
	// "browser": force headless Chrome.
	FetchMode string `json:"fetch_mode,omitempty" binding:"omitempty,oneof=auto browser http"`

	// WebhookURL, if set, receives a job summary POST on completion.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook payload with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *MirrorRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 120
	}
	if r.FetchMode == "" {
		r.FetchMode = "auto"
	}
}

// SiteRequest is the payload for POST /api/v1/site. It mirrors the page at
// URL plus every navigation tab discovered on it, then links the bundles
// together under one index page.
type SiteRequest struct {
	// URL is the landing page whose tabs are discovered. Required.
	URL string `json:"url" binding:"required,url"`

	// Name overrides the site directory name under the output root.
	Name string `json:"name,omitempty"`

	// MaxTabs caps the number of discovered tabs mirrored.
	// Default: 16.
	MaxTabs int `json:"max_tabs,omitempty" binding:"omitempty,min=1,max=64"`

	// Timeout is the per-tab job timeout in seconds. Default: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=600"`

	// Stealth enables anti-bot-detection evasions during rendering.
	Stealth bool `json:"stealth,omitempty"`

	// WebhookURL, if set, receives a site summary POST on completion.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook payload with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *SiteRequest) Defaults() {
	if r.MaxTabs == 0 {
		r.MaxTabs = 16
	}
	if r.Timeout == 0 {
		r.Timeout = 120
	}
}
