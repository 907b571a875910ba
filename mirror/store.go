package mirror

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/kennygrant/sanitize"

	"github.com/sandeshsk12/port/models"
)

// assetsDirName is the subdirectory of the bundle that holds mirrored
// resources, preserving the origin's path hierarchy underneath it.
const assetsDirName = "assets"

// AssetRecord tracks one distinct URL within a job. LocalPath is relative
// to the bundle root, always forward-slashed so it can be embedded in
// markup directly.
type AssetRecord struct {
	URL       string
	LocalPath string
	Persisted bool
}

// AssetStore owns the URL→local-path mapping and the on-disk asset tree
// for one job. Safe for concurrent use; each job gets its own instance
// so two jobs never contend on the same files.
type AssetStore struct {
	outputDir string

	mu     sync.Mutex
	byURL  map[string]*AssetRecord
	byPath map[string]string // claimed local path -> owning URL
}

// NewAssetStore creates the bundle's output directory and returns an
// empty store. An uncreatable directory is a job-level failure.
func NewAssetStore(outputDir string) (*AssetStore, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, models.NewMirrorError(models.ErrCodeJobFailed,
			fmt.Sprintf("output directory %s is not creatable", outputDir), err)
	}
	return &AssetStore{
		outputDir: outputDir,
		byURL:     make(map[string]*AssetRecord),
		byPath:    make(map[string]string),
	}, nil
}

// OutputDir returns the bundle root.
func (s *AssetStore) OutputDir() string { return s.outputDir }

// ResolveOrCreate maps an absolute URL to a local path under assets/.
// Idempotent: the first call for a URL claims a path, every later call
// returns the same record with created=false. Two distinct URLs never
// share a path; when their sanitized paths collide, the later one gets
// a discriminator derived from its full URL spliced in before the
// extension.
func (s *AssetStore) ResolveOrCreate(absURL string) (*AssetRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byURL[absURL]; ok {
		return rec, false
	}

	local := s.localPathFor(absURL)
	if owner, taken := s.byPath[local]; taken && owner != absURL {
		local = withDiscriminator(local, absURL)
	}

	rec := &AssetRecord{URL: absURL, LocalPath: local}
	s.byURL[absURL] = rec
	s.byPath[local] = absURL
	return rec, true
}

// Lookup returns the record for a URL if one was already created.
func (s *AssetStore) Lookup(absURL string) (*AssetRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byURL[absURL]
	return rec, ok
}

// Persist writes fetched bytes to the record's path, creating parent
// directories as needed. Only persisted records are eligible for
// rewriting; a write error leaves the record unpersisted so the original
// reference stays in the markup.
func (s *AssetStore) Persist(rec *AssetRecord, data []byte) error {
	full := filepath.Join(s.outputDir, filepath.FromSlash(rec.LocalPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return models.NewMirrorError(models.ErrCodePersistFailed,
			fmt.Sprintf("create directories for %s", rec.LocalPath), err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return models.NewMirrorError(models.ErrCodePersistFailed,
			fmt.Sprintf("write %s", rec.LocalPath), err)
	}
	s.mu.Lock()
	rec.Persisted = true
	s.mu.Unlock()
	return nil
}

// RelativeToDocument expresses a local path relative to the bundle's
// primary document, which sits at the bundle root. Paths are already
// root-relative, so this is the identity today, but callers go through
// it so a nested document layout stays a local change.
func (s *AssetStore) RelativeToDocument(localPath string) string {
	return localPath
}

// RelativeTo expresses a local path relative to another stored asset's
// directory, for references embedded inside persisted assets such as
// url() tokens in stylesheets.
func (s *AssetStore) RelativeTo(fromLocalPath, localPath string) string {
	rel, err := filepath.Rel(
		filepath.FromSlash(path.Dir(fromLocalPath)),
		filepath.FromSlash(localPath))
	if err != nil {
		return localPath
	}
	return filepath.ToSlash(rel)
}

// localPathFor derives the assets-relative path from the URL's path
// component. The query string never participates: two URLs differing
// only by query map to the same candidate path and get disambiguated
// by the collision handling in ResolveOrCreate.
func (s *AssetStore) localPathFor(absURL string) string {
	urlPath := ""
	if u, err := urlParser.Parse(absURL); err == nil {
		urlPath = u.Pathname()
	}
	urlPath = strings.TrimPrefix(urlPath, "/")
	if urlPath == "" || strings.HasSuffix(urlPath, "/") {
		urlPath += "index.html"
	}

	segs := strings.Split(urlPath, "/")
	clean := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		clean = append(clean, sanitizeSegment(seg))
	}
	if len(clean) == 0 {
		clean = []string{"index.html"}
	}
	return path.Join(assetsDirName, path.Join(clean...))
}

// sanitizeSegment makes one path segment filesystem-safe while keeping
// the extension readable.
func sanitizeSegment(seg string) string {
	ext := path.Ext(seg)
	base := seg[:len(seg)-len(ext)]
	cleanBase := sanitize.BaseName(base)
	if cleanBase == "" {
		cleanBase = "_"
	}
	if ext == "" {
		return cleanBase
	}
	cleanExt := sanitize.BaseName(ext[1:])
	if cleanExt == "" {
		return cleanBase
	}
	return cleanBase + "." + cleanExt
}

// withDiscriminator splices an 8-hex-digit hash of the full URL in
// before the extension, keeping collisions deterministic across runs.
func withDiscriminator(localPath, absURL string) string {
	h := fmt.Sprintf("%08x", uint32(xxhash.Sum64String(absURL)))
	ext := path.Ext(localPath)
	return localPath[:len(localPath)-len(ext)] + "." + h + ext
}
