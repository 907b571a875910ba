package mirror

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Rule names one resource-bearing (tag, attribute) pair the rewriter walks.
// Fetch controls whether matched references are downloaded into the bundle;
// anchors are rewritten for offline navigation but never fetched.
type Rule struct {
	Tag   string
	Attr  string
	Fetch bool
}

// Selector returns the CSS selector matching this rule's elements.
func (r Rule) Selector() string {
	return fmt.Sprintf("%s[%s]", r.Tag, r.Attr)
}

// DefaultRules is the element→attribute table for a standard HTML page.
// Order matters: rewriting iterates rules in this order, and within a rule
// in document order, so output is deterministic for a given input.
var DefaultRules = []Rule{
	{Tag: "link", Attr: "href", Fetch: true},
	{Tag: "script", Attr: "src", Fetch: true},
	{Tag: "img", Attr: "src", Fetch: true},
	{Tag: "source", Attr: "src", Fetch: true},
	{Tag: "iframe", Attr: "src", Fetch: true},
	{Tag: "embed", Attr: "src", Fetch: true},
	{Tag: "object", Attr: "data", Fetch: true},
	{Tag: "a", Attr: "href", Fetch: false},
}

// ValidateRules compiles every rule's selector, catching malformed
// tag/attribute names before any job runs. Called once at startup.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Tag == "" || r.Attr == "" {
			return fmt.Errorf("mirror: rule with empty tag or attribute: %+v", r)
		}
		sel := r.Selector()
		if seen[sel] {
			return fmt.Errorf("mirror: duplicate rule %s", sel)
		}
		seen[sel] = true
		if _, err := cascadia.Parse(sel); err != nil {
			return fmt.Errorf("mirror: invalid rule selector %s: %w", sel, err)
		}
	}
	return nil
}
