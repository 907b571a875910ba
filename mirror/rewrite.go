package mirror

import (
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Reference is one resource-bearing attribute value discovered in the
// markup, in document order. Ephemeral: produced by the discovery walk
// and consumed by the orchestrator's fetch phase.
type Reference struct {
	Tag     string
	Attr    string
	Raw     string
	AbsURL  string
	InScope bool
	// Fetch is true when the reference should be downloaded: it came
	// from a fetchable rule and resolved within scope. Anchors and
	// out-of-scope references are rewritten but never fetched.
	Fetch bool
}

// cssURLPattern matches url(...) tokens in inline styles and <style>
// blocks, capturing the unquoted reference.
var cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

// Rewriter walks a parsed document against the rule table, first to
// discover references and later, after the fetch barrier, to replace
// in-scope references with bundle-local paths.
type Rewriter struct {
	rules []Rule
	norm  *Normalizer
	store *AssetStore
}

// NewRewriter wires a rewriter to one job's normalizer and store.
func NewRewriter(rules []Rule, norm *Normalizer, store *AssetStore) *Rewriter {
	return &Rewriter{rules: rules, norm: norm, store: store}
}

// Collect performs the discovery pass: every rule's elements in rule
// order, each rule in document order, then srcset attributes, then
// url() tokens in styles. Rejected references are silently dropped;
// out-of-scope ones are reported with Fetch forced off so the summary
// can count them.
func (rw *Rewriter) Collect(doc *goquery.Document) []Reference {
	var refs []Reference
	for _, rule := range rw.rules {
		doc.Find(rule.Selector()).Each(func(_ int, sel *goquery.Selection) {
			raw, _ := sel.Attr(rule.Attr)
			abs, ok := rw.norm.Resolve(raw)
			if !ok {
				return
			}
			inScope := rw.norm.InScope(abs)
			refs = append(refs, Reference{
				Tag:     rule.Tag,
				Attr:    rule.Attr,
				Raw:     raw,
				AbsURL:  abs,
				InScope: inScope,
				Fetch:   rule.Fetch && inScope,
			})
		})
	}
	doc.Find("img[srcset], source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("srcset")
		for _, cand := range splitSrcset(raw) {
			abs, ok := rw.norm.Resolve(cand.url)
			if !ok {
				continue
			}
			inScope := rw.norm.InScope(abs)
			refs = append(refs, Reference{
				Tag:     goquery.NodeName(sel),
				Attr:    "srcset",
				Raw:     cand.url,
				AbsURL:  abs,
				InScope: inScope,
				Fetch:   inScope,
			})
		}
	})
	for _, raw := range rw.styleURLs(doc) {
		abs, ok := rw.norm.Resolve(raw)
		if !ok {
			continue
		}
		inScope := rw.norm.InScope(abs)
		refs = append(refs, Reference{
			Tag:     "style",
			Attr:    "style",
			Raw:     raw,
			AbsURL:  abs,
			InScope: inScope,
			Fetch:   inScope,
		})
	}
	return refs
}

// Rewrite replaces every reference whose resource was persisted with
// its bundle-local path, promotes out-of-scope and unfetched same-origin
// references to absolute form where needed, and strips <base> so the
// browser resolves the rewritten relative paths against the bundle.
func (rw *Rewriter) Rewrite(doc *goquery.Document) {
	for _, rule := range rw.rules {
		attr, fetchable := rule.Attr, rule.Fetch
		doc.Find(rule.Selector()).Each(func(_ int, sel *goquery.Selection) {
			raw, _ := sel.Attr(attr)
			if replacement, ok := rw.replacementFor(raw, fetchable); ok {
				sel.SetAttr(attr, replacement)
			}
		})
	}
	doc.Find("img[srcset], source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("srcset")
		sel.SetAttr("srcset", rw.rewriteSrcset(raw))
	})
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("style")
		sel.SetAttr("style", rw.rewriteCSS(raw))
	})
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		sel.SetText(rw.rewriteCSS(sel.Text()))
	})
	doc.Find("base").Remove()
}

// replacementFor maps one raw reference to its rewritten value. The
// second return is false when the attribute should be left untouched.
// A reference is rewritten to a local path only when its resource was
// actually persisted; anything else keeps a URL that still resolves
// over the network, never a dangling local path. In-scope references
// of non-fetchable rules (anchors) get absolutized so navigation out
// of the bundle lands on the live site instead of a dead relative path.
func (rw *Rewriter) replacementFor(raw string, fetchable bool) (string, bool) {
	abs, ok := rw.norm.Resolve(raw)
	if !ok {
		return "", false
	}
	if !rw.norm.InScope(abs) {
		if raw == abs {
			return "", false
		}
		return abs, true
	}
	if rec, ok := rw.store.Lookup(abs); ok && rec.Persisted {
		return rw.store.RelativeToDocument(rec.LocalPath), true
	}
	if !fetchable && raw != abs {
		return abs, true
	}
	return "", false
}

func (rw *Rewriter) rewriteSrcset(raw string) string {
	cands := splitSrcset(raw)
	parts := make([]string, 0, len(cands))
	for _, c := range cands {
		u := c.url
		if replacement, ok := rw.replacementFor(u, true); ok {
			u = replacement
		}
		if c.descriptor != "" {
			parts = append(parts, u+" "+c.descriptor)
		} else {
			parts = append(parts, u)
		}
	}
	return strings.Join(parts, ", ")
}

func (rw *Rewriter) rewriteCSS(css string) string {
	return cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		groups := cssURLPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if replacement, ok := rw.replacementFor(groups[1], true); ok {
			return "url(" + replacement + ")"
		}
		return match
	})
}

// isStylesheet reports whether a stored local path names a CSS file.
func isStylesheet(localPath string) bool {
	return strings.EqualFold(path.Ext(localPath), ".css")
}

// StylesheetRefs extracts url() references from a fetched stylesheet
// body, resolved against the stylesheet's own URL. Same Reference
// contract as Collect so the orchestrator can feed them into a second
// fetch round.
func (rw *Rewriter) StylesheetRefs(cssURL string, body []byte) []Reference {
	var refs []Reference
	for _, m := range cssURLPattern.FindAllStringSubmatch(string(body), -1) {
		abs, ok := rw.norm.ResolveAgainst(cssURL, m[1])
		if !ok {
			continue
		}
		inScope := rw.norm.InScope(abs)
		refs = append(refs, Reference{
			Tag:     "css",
			Attr:    "url",
			Raw:     m[1],
			AbsURL:  abs,
			InScope: inScope,
			Fetch:   inScope,
		})
	}
	return refs
}

// RewriteStylesheet replaces url() tokens in a downloaded stylesheet
// body. Persisted targets get paths relative to the stylesheet's own
// bundle location, out-of-scope ones get their absolute form, and
// everything else is left untouched so it still resolves over the
// network.
func (rw *Rewriter) RewriteStylesheet(cssURL, cssLocalPath string, body []byte) []byte {
	out := cssURLPattern.ReplaceAllStringFunc(string(body), func(match string) string {
		groups := cssURLPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		raw := groups[1]
		abs, ok := rw.norm.ResolveAgainst(cssURL, raw)
		if !ok {
			return match
		}
		if rec, ok := rw.store.Lookup(abs); ok && rec.Persisted {
			return "url(" + rw.store.RelativeTo(cssLocalPath, rec.LocalPath) + ")"
		}
		if !rw.norm.InScope(abs) && raw != abs {
			return "url(" + abs + ")"
		}
		return match
	})
	return []byte(out)
}

// styleURLs extracts url() references from inline style attributes and
// <style> elements, in document order per source.
func (rw *Rewriter) styleURLs(doc *goquery.Document) []string {
	var urls []string
	collect := func(css string) {
		for _, m := range cssURLPattern.FindAllStringSubmatch(css, -1) {
			urls = append(urls, m[1])
		}
	}
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("style")
		collect(raw)
	})
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		collect(sel.Text())
	})
	return urls
}

type srcsetCandidate struct {
	url        string
	descriptor string
}

// splitSrcset parses the comma-separated "url descriptor" entries of a
// srcset attribute. Good enough for the common 1x/2x and width forms;
// URLs containing commas are not supported.
func splitSrcset(raw string) []srcsetCandidate {
	var out []srcsetCandidate
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Fields(entry)
		c := srcsetCandidate{url: fields[0]}
		if len(fields) > 1 {
			c.descriptor = strings.Join(fields[1:], " ")
		}
		out = append(out, c)
	}
	return out
}
