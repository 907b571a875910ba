package mirror

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kennygrant/sanitize"

	"github.com/sandeshsk12/port/models"
)

// PageLink names one mirrored page in a multi-page site bundle. Slug is
// the page's directory name under the site root.
type PageLink struct {
	Label string
	Slug  string
}

// Slugify derives a filesystem-safe directory name from a tab label.
func Slugify(label string) string {
	s := sanitize.BaseName(strings.TrimSpace(label))
	s = strings.ToLower(strings.ReplaceAll(s, "-", "_"))
	if s == "" {
		s = "page"
	}
	return s
}

// LinkTabs rewires a mirrored page's navigation so tab controls point at
// sibling bundles instead of the live site. Anchors and buttons whose
// visible text matches a page label get an href of ../<slug>/index.html
// (or index.html for the current page); matching buttons are converted
// to anchors so the navigation works without any script.
func LinkTabs(htmlStr string, links []PageLink, currentSlug string) (string, error) {
	if len(links) == 0 {
		return htmlStr, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return "", models.NewMirrorError(models.ErrCodeInternal, "parse markup for nav linking", err)
	}

	byLabel := make(map[string]PageLink, len(links))
	for _, l := range links {
		byLabel[strings.ToLower(strings.TrimSpace(l.Label))] = l
	}

	hrefFor := func(l PageLink) string {
		if l.Slug == currentSlug {
			return "index.html"
		}
		return "../" + l.Slug + "/index.html"
	}

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(sel.Text()))
		if l, ok := byLabel[label]; ok {
			sel.SetAttr("href", hrefFor(l))
		}
	})
	doc.Find("button, [role=tab]").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "a" {
			return
		}
		label := strings.ToLower(strings.TrimSpace(sel.Text()))
		l, ok := byLabel[label]
		if !ok {
			return
		}
		class, _ := sel.Attr("class")
		sel.ReplaceWithHtml(fmt.Sprintf(`<a href="%s" class="%s">%s</a>`,
			hrefFor(l), html.EscapeString(class), html.EscapeString(sel.Text())))
	})

	out, err := doc.Html()
	if err != nil {
		return "", models.NewMirrorError(models.ErrCodeInternal, "serialize nav-linked markup", err)
	}
	return out, nil
}

// WriteIndex writes a minimal landing document at the site root linking
// every mirrored page bundle.
func WriteIndex(root, title string, links []PageLink) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(fmt.Sprintf("<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(title)))
	b.WriteString("</head>\n<body>\n")
	b.WriteString(fmt.Sprintf("<h1>%s</h1>\n<ul>\n", html.EscapeString(title)))
	for _, l := range links {
		b.WriteString(fmt.Sprintf("<li><a href=\"%s/index.html\">%s</a></li>\n",
			l.Slug, html.EscapeString(l.Label)))
	}
	b.WriteString("</ul>\n</body>\n</html>\n")

	dest := filepath.Join(root, "index.html")
	if err := os.WriteFile(dest, []byte(b.String()), 0o644); err != nil {
		return models.NewMirrorError(models.ErrCodePersistFailed,
			fmt.Sprintf("write site index %s", dest), err)
	}
	return nil
}
