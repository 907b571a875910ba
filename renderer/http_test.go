package renderer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPEngine_RendersStaticPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Dashboard</title></head><body><h1>hello</h1></body></html>`))
	}))
	defer srv.Close()

	e := NewHTTPEngine(0)
	res, err := e.Render(context.Background(), &Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Title != "Dashboard" {
		t.Errorf("title = %q, want Dashboard", res.Title)
	}
	if !strings.Contains(res.HTML, "<h1>hello</h1>") {
		t.Errorf("unexpected HTML: %s", res.HTML)
	}
	if res.EngineName != "http" {
		t.Errorf("engine = %q", res.EngineName)
	}
	if res.FinalURL != srv.URL+"/" && res.FinalURL != srv.URL {
		t.Errorf("finalURL = %q", res.FinalURL)
	}
}

func TestHTTPEngine_NonHTMLIsRenderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := NewHTTPEngine(0)
	if _, err := e.Render(context.Background(), &Request{URL: srv.URL}); err == nil {
		t.Fatal("expected error for non-HTML response")
	}
}

func TestNeedsBrowser(t *testing.T) {
	cases := []struct {
		name string
		html string
		want bool
	}{
		{
			"spa shell with root div",
			`<html><body><div id="root"></div><script src="/app.js"></script></body></html>`,
			true,
		},
		{
			"noscript plea",
			`<html><body><noscript>Please enable JavaScript to view this site.</noscript><div id="app"></div></body></html>`,
			true,
		},
		{
			"server rendered content",
			`<html><body><article>` + strings.Repeat("real content ", 30) + `</article></body></html>`,
			false,
		},
		{
			"short static page",
			`<html><body><p>about us</p></body></html>`,
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsBrowser(tc.html); got != tc.want {
				t.Errorf("NeedsBrowser = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExtractVisibleText_SkipsScriptAndStyle(t *testing.T) {
	html := `<html><body><script>var hidden = 1;</script><style>.x{}</style><p>visible</p></body></html>`
	got := extractVisibleText(html)
	if !strings.Contains(got, "visible") {
		t.Errorf("visible text missing: %q", got)
	}
	if strings.Contains(got, "hidden") || strings.Contains(got, ".x{}") {
		t.Errorf("script or style text leaked: %q", got)
	}
}
