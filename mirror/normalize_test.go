package mirror

import "testing"

func TestResolve_ReferenceShapes(t *testing.T) {
	n, err := NewNormalizer("https://example.test/dashboard/index")
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"root relative", "/logo.png", "https://example.test/logo.png", true},
		{"document relative", "img/chart.svg", "https://example.test/dashboard/img/chart.svg", true},
		{"dot segments", "../assets/app.css", "https://example.test/assets/app.css", true},
		{"scheme relative", "//example.test/lib.js", "https://example.test/lib.js", true},
		{"absolute http", "http://example.test/a.png", "http://example.test/a.png", true},
		{"absolute cross origin", "https://cdn.other.test/lib.js", "https://cdn.other.test/lib.js", true},
		{"fragment only", "#section", "", false},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"data uri", "data:image/png;base64,AAAA", "", false},
		{"blob uri", "blob:https://example.test/uuid", "", false},
		{"javascript", "javascript:void(0)", "", false},
		{"mailto", "mailto:team@example.test", "", false},
		{"fragment stripped", "/page.css#frag", "https://example.test/page.css", true},
		{"query kept", "/api/icon?size=2", "https://example.test/api/icon?size=2", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := n.Resolve(tc.raw)
			if ok != tc.ok {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestInScope_ExactHostMatch(t *testing.T) {
	n, err := NewNormalizer("https://example.test/page")
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}

	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.test/a.png", true},
		{"http://example.test/a.png", true},
		{"https://sub.example.test/a.png", false},
		{"https://cdn.other.test/lib.js", false},
		{"https://example.test:8443/a.png", false},
	}
	for _, tc := range cases {
		if got := n.InScope(tc.url); got != tc.want {
			t.Errorf("InScope(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestInScope_PortIsPartOfHost(t *testing.T) {
	n, err := NewNormalizer("http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	if !n.InScope("http://localhost:8080/style.css") {
		t.Error("same host and port should be in scope")
	}
	if n.InScope("http://localhost:9090/style.css") {
		t.Error("different port should be out of scope")
	}
}

func TestValidateRules(t *testing.T) {
	if err := ValidateRules(DefaultRules); err != nil {
		t.Fatalf("DefaultRules should validate: %v", err)
	}
	if err := ValidateRules([]Rule{{Tag: "", Attr: "src"}}); err == nil {
		t.Error("empty tag should be rejected")
	}
	if err := ValidateRules([]Rule{
		{Tag: "img", Attr: "src", Fetch: true},
		{Tag: "img", Attr: "src", Fetch: false},
	}); err == nil {
		t.Error("duplicate rule should be rejected")
	}
}
