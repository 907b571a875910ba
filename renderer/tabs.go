package renderer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sandeshsk12/port/mirror"
)

// Tab is one navigation target discovered on a page. URL is absolute
// and same-origin; it is empty for script-only tab controls that carry
// no link, which cannot be mirrored as separate pages.
type Tab struct {
	Label string
	URL   string
}

// tabSelectors match the common tab idioms: ARIA tab roles, Radix-style
// collection items, and plain nav anchors, in that priority order.
var tabSelectors = []string{
	"[role=tab]",
	"[data-radix-collection-item]",
	"nav a",
	"header a",
}

// excludedLabels are controls that look like tabs but lead away from
// content: auth, search, and chrome buttons.
var excludedLabels = []string{
	"login", "log in", "sign in", "sign up", "logout", "log out",
	"search", "menu", "close", "settings", "share", "export",
}

const maxTabLabelLen = 30

// DiscoverTabs scans rendered markup for navigation tabs and resolves
// their targets against the page origin. Only same-origin targets are
// kept; duplicates by label are collapsed, first occurrence wins.
func DiscoverTabs(htmlStr, originURL string) ([]Tab, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, err
	}
	norm, err := mirror.NewNormalizer(originURL)
	if err != nil {
		return nil, err
	}

	var tabs []Tab
	seen := make(map[string]bool)
	for _, sel := range tabSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			label := strings.TrimSpace(s.Text())
			if !usableTabLabel(label) {
				return
			}
			key := strings.ToLower(label)
			if seen[key] {
				return
			}

			target := ""
			if href, ok := s.Attr("href"); ok {
				if abs, resolved := norm.Resolve(href); resolved && norm.InScope(abs) {
					target = abs
				} else {
					// Off-origin link, not a mirrorable tab.
					return
				}
			}

			seen[key] = true
			tabs = append(tabs, Tab{Label: label, URL: target})
		})
	}
	return tabs, nil
}

// usableTabLabel filters out empty, over-long, and chrome-control labels.
func usableTabLabel(label string) bool {
	if label == "" || len(label) > maxTabLabelLen {
		return false
	}
	lower := strings.ToLower(label)
	for _, excluded := range excludedLabels {
		if strings.Contains(lower, excluded) {
			return false
		}
	}
	return true
}
