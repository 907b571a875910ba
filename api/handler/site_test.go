package handler

import (
	"testing"

	"github.com/sandeshsk12/port/renderer"
)

func TestSelectPages_LandingPageFirst(t *testing.T) {
	pages := selectPages("Dashboard", "https://example.test/", []renderer.Tab{
		{Label: "Metrics", URL: "https://example.test/metrics"},
		{Label: "Settings", URL: ""},
		{Label: "Refresh", URL: "https://example.test/"},
	}, 16)

	if len(pages) != 2 {
		t.Fatalf("pages = %d, want landing page plus one followable tab", len(pages))
	}
	if pages[0].slug != "home" || pages[0].url != "https://example.test/" {
		t.Errorf("landing page = %+v", pages[0])
	}
	if pages[1].slug != "metrics" {
		t.Errorf("tab slug = %q, want %q", pages[1].slug, "metrics")
	}
}

func TestSelectPages_CollidingSlugsGetSuffixed(t *testing.T) {
	pages := selectPages("Dashboard", "https://example.test/", []renderer.Tab{
		{Label: "Home", URL: "https://example.test/landing"},
		{Label: "Metrics", URL: "https://example.test/metrics"},
		{Label: "metrics", URL: "https://example.test/metrics2"},
	}, 16)

	if len(pages) != 4 {
		t.Fatalf("pages = %d, want 4", len(pages))
	}
	slugs := make(map[string]bool, len(pages))
	for _, p := range pages {
		if slugs[p.slug] {
			t.Fatalf("duplicate slug %q", p.slug)
		}
		slugs[p.slug] = true
	}
	if pages[1].slug != "home-2" {
		t.Errorf("tab colliding with the landing page slug = %q, want %q", pages[1].slug, "home-2")
	}
	if pages[3].slug != "metrics-2" {
		t.Errorf("tab colliding with an earlier tab slug = %q, want %q", pages[3].slug, "metrics-2")
	}
}

func TestSelectPages_CapsAtMaxTabs(t *testing.T) {
	tabs := []renderer.Tab{
		{Label: "One", URL: "https://example.test/one"},
		{Label: "Two", URL: "https://example.test/two"},
		{Label: "Three", URL: "https://example.test/three"},
	}
	pages := selectPages("Dashboard", "https://example.test/", tabs, 2)
	if len(pages) != 3 {
		t.Errorf("pages = %d, want landing page plus two tabs", len(pages))
	}
}
