package mirror

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveOrCreate_Idempotent(t *testing.T) {
	store, err := NewAssetStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}

	rec1, created1 := store.ResolveOrCreate("https://example.test/css/app.css")
	rec2, created2 := store.ResolveOrCreate("https://example.test/css/app.css")

	if !created1 {
		t.Error("first call should report created")
	}
	if created2 {
		t.Error("second call should not report created")
	}
	if rec1 != rec2 {
		t.Error("both calls should return the same record")
	}
	if rec1.LocalPath != "assets/css/app.css" {
		t.Errorf("unexpected local path: %q", rec1.LocalPath)
	}
}

func TestResolveOrCreate_PreservesHierarchy(t *testing.T) {
	store, err := NewAssetStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}

	cases := []struct {
		url  string
		want string
	}{
		{"https://example.test/logo.png", "assets/logo.png"},
		{"https://example.test/static/js/app.js", "assets/static/js/app.js"},
		{"https://example.test/", "assets/index.html"},
		{"https://example.test/docs/", "assets/docs/index.html"},
	}
	for _, tc := range cases {
		rec, _ := store.ResolveOrCreate(tc.url)
		if rec.LocalPath != tc.want {
			t.Errorf("ResolveOrCreate(%q) = %q, want %q", tc.url, rec.LocalPath, tc.want)
		}
	}
}

func TestResolveOrCreate_CollisionDisambiguated(t *testing.T) {
	store, err := NewAssetStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}

	// Same path component, different query: both would sanitize to the
	// same local path.
	rec1, _ := store.ResolveOrCreate("https://example.test/icon.png?size=1")
	rec2, _ := store.ResolveOrCreate("https://example.test/icon.png?size=2")

	if rec1.LocalPath == rec2.LocalPath {
		t.Fatalf("distinct URLs share local path %q", rec1.LocalPath)
	}
	if rec1.LocalPath != "assets/icon.png" {
		t.Errorf("first URL should claim the plain path, got %q", rec1.LocalPath)
	}
	if !strings.HasSuffix(rec2.LocalPath, ".png") {
		t.Errorf("discriminated path should keep its extension: %q", rec2.LocalPath)
	}

	// The discriminator is derived from the URL, so re-running the same
	// sequence yields the same paths.
	store2, err := NewAssetStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}
	again1, _ := store2.ResolveOrCreate("https://example.test/icon.png?size=1")
	again2, _ := store2.ResolveOrCreate("https://example.test/icon.png?size=2")
	if again1.LocalPath != rec1.LocalPath || again2.LocalPath != rec2.LocalPath {
		t.Error("collision disambiguation should be deterministic across jobs")
	}
}

func TestResolveOrCreate_SanitizesTraversal(t *testing.T) {
	store, err := NewAssetStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}

	rec, _ := store.ResolveOrCreate("https://example.test/a/../../etc/passwd")
	if strings.Contains(rec.LocalPath, "..") {
		t.Errorf("local path must not contain dot-dot segments: %q", rec.LocalPath)
	}
	if !strings.HasPrefix(rec.LocalPath, "assets/") {
		t.Errorf("local path must stay under assets/: %q", rec.LocalPath)
	}
}

func TestPersist_WritesBytes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewAssetStore(dir)
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}

	rec, _ := store.ResolveOrCreate("https://example.test/static/app.js")
	data := []byte("console.log('offline')")
	if err := store.Persist(rec, data); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !rec.Persisted {
		t.Error("record should be marked persisted")
	}

	got, err := os.ReadFile(filepath.Join(dir, "assets", "static", "app.js"))
	if err != nil {
		t.Fatalf("read persisted file: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("persisted bytes mismatch: %q", got)
	}
}

func TestNewAssetStore_UncreatableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	// A path whose parent is a regular file cannot be created.
	_, err := NewAssetStore(filepath.Join(blocker, "out"))
	if err == nil {
		t.Fatal("expected error for uncreatable output directory")
	}
}

func TestRelativeTo(t *testing.T) {
	s, err := NewAssetStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetStore: %v", err)
	}
	cases := []struct {
		from, target, want string
	}{
		{"assets/css/site.css", "assets/img/bg.png", "../img/bg.png"},
		{"assets/site.css", "assets/bg.png", "bg.png"},
		{"assets/a/b/theme.css", "assets/x.woff2", "../../x.woff2"},
	}
	for _, tc := range cases {
		if got := s.RelativeTo(tc.from, tc.target); got != tc.want {
			t.Errorf("RelativeTo(%q, %q) = %q, want %q", tc.from, tc.target, got, tc.want)
		}
	}
}
