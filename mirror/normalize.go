package mirror

import (
	"strings"

	whatwgURL "github.com/nlnwa/whatwg-url/url"
)

// urlParser is shared across jobs. whatwg-url is lenient the way browsers
// are, so references that net/url chokes on (stray percent signs, odd
// spacing) still resolve.
var urlParser = whatwgURL.NewParser(whatwgURL.WithPercentEncodeSinglePercentSign())

// Normalizer resolves raw attribute strings against a page origin and
// decides same-origin scope. One instance per job, derived from the
// page's final URL after redirects.
type Normalizer struct {
	origin *whatwgURL.Url
	host   string
	scheme string
}

// NewNormalizer parses the page origin URL. The origin must be absolute
// http or https.
func NewNormalizer(originURL string) (*Normalizer, error) {
	u, err := urlParser.Parse(originURL)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		origin: u,
		host:   u.Host(),
		scheme: strings.TrimSuffix(u.Protocol(), ":"),
	}, nil
}

// Host returns the origin host (including port when present).
func (n *Normalizer) Host() string { return n.host }

// Origin returns the origin as scheme://host.
func (n *Normalizer) Origin() string { return n.scheme + "://" + n.host }

// rejectedSchemes are reference shapes that are not network resources.
// They never resolve and are always left untouched in the markup.
var rejectedSchemes = []string{
	"data:", "blob:", "javascript:", "mailto:", "tel:", "about:",
}

// Resolve turns a raw reference string into an absolute URL, or reports
// that the reference is not mirrorable. The returned URL keeps its query
// string (needed for fetching) but drops any fragment.
//
// Resolution rules, in order:
//   - empty strings, bare fragments, and data/blob/javascript style
//     schemes are rejected
//   - "//host/path" gets the origin's scheme
//   - absolute http(s) URLs pass through as-is
//   - everything else resolves relative to the origin URL
func (n *Normalizer) Resolve(raw string) (string, bool) {
	return n.ResolveAgainst(n.origin.Href(true), raw)
}

// ResolveAgainst resolves a raw reference against an arbitrary base URL
// instead of the page origin. References inside a downloaded stylesheet
// resolve against the stylesheet's own URL, not the document's.
func (n *Normalizer) ResolveAgainst(baseURL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, s := range rejectedSchemes {
		if strings.HasPrefix(lower, s) {
			return "", false
		}
	}
	u, err := urlParser.ParseRef(baseURL, raw)
	if err != nil {
		return "", false
	}
	scheme := strings.TrimSuffix(u.Protocol(), ":")
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	// Href(true) excludes the fragment.
	return u.Href(true), true
}

// InScope reports whether an absolute URL belongs to the page's origin.
// The host must match exactly; subdomains and sibling hosts are out of
// scope even on the same scheme.
func (n *Normalizer) InScope(absURL string) bool {
	u, err := urlParser.Parse(absURL)
	if err != nil {
		return false
	}
	return u.Host() == n.host
}
