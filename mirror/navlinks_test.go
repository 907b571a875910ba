package mirror

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Overview", "overview"},
		{"  Token Flows ", "token_flows"},
		{"Q&A", "q_a"},
		{"", "page"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLinkTabs_RewiresAnchors(t *testing.T) {
	links := []PageLink{
		{Label: "Overview", Slug: "overview"},
		{Label: "Token Flows", Slug: "token_flows"},
	}
	html := `<html><body><nav>
<a href="/overview">Overview</a>
<a href="/flows">Token Flows</a>
<a href="/login">Login</a>
</nav></body></html>`

	out, err := LinkTabs(html, links, "overview")
	if err != nil {
		t.Fatalf("LinkTabs: %v", err)
	}
	if !strings.Contains(out, `href="index.html">Overview`) {
		t.Errorf("current page anchor should point at its own document:\n%s", out)
	}
	if !strings.Contains(out, `href="../token_flows/index.html"`) {
		t.Errorf("sibling page anchor should point across bundles:\n%s", out)
	}
	if !strings.Contains(out, `href="/login"`) {
		t.Errorf("unrelated anchor should stay untouched:\n%s", out)
	}
}

func TestLinkTabs_ConvertsTabButtons(t *testing.T) {
	links := []PageLink{{Label: "Metrics", Slug: "metrics"}}
	html := `<html><body><button class="tab" role="tab">Metrics</button></body></html>`

	out, err := LinkTabs(html, links, "overview")
	if err != nil {
		t.Fatalf("LinkTabs: %v", err)
	}
	if strings.Contains(out, "<button") {
		t.Errorf("matching button should be converted to an anchor:\n%s", out)
	}
	if !strings.Contains(out, `href="../metrics/index.html"`) {
		t.Errorf("converted anchor should point at the sibling bundle:\n%s", out)
	}
}

func TestLinkTabs_NoLinksIsNoop(t *testing.T) {
	html := `<html><body><a href="/x">X</a></body></html>`
	out, err := LinkTabs(html, nil, "overview")
	if err != nil {
		t.Fatalf("LinkTabs: %v", err)
	}
	if out != html {
		t.Error("empty link set should leave markup unchanged")
	}
}

func TestWriteIndex(t *testing.T) {
	dir := t.TempDir()
	links := []PageLink{
		{Label: "Overview", Slug: "overview"},
		{Label: "Metrics", Slug: "metrics"},
	}
	if err := WriteIndex(dir, "flipside dashboard", links); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `href="overview/index.html"`) ||
		!strings.Contains(out, `href="metrics/index.html"`) {
		t.Errorf("index should link every bundle:\n%s", out)
	}
	if !strings.Contains(out, "flipside dashboard") {
		t.Error("index should carry the site title")
	}
}
