package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sandeshsk12/port/models"
)

// Options tune one mirror job. The zero value gives sane defaults.
type Options struct {
	// Rules overrides the element→attribute table. Nil means DefaultRules.
	Rules []Rule
	// Concurrency bounds in-flight resource fetches. Zero means 8.
	Concurrency int
	// JobTimeout is the whole-job deadline. Zero means no job deadline
	// beyond the caller's context.
	JobTimeout time.Duration
	// Fetcher overrides the resource fetcher, mainly for tests.
	Fetcher *Fetcher
	// FetcherOptions builds the default fetcher when Fetcher is nil.
	FetcherOptions FetcherOptions
}

// Result is the outcome of one mirror job.
type Result struct {
	// HTML is the rewritten markup, also written to <outputDir>/index.html.
	HTML string
	// Summary counts resources by outcome.
	Summary models.Summary
}

// jobState is the phase of a running job. Transitions only move forward.
type jobState int

const (
	stateDiscovering jobState = iota
	stateFetching
	statePersisting
	stateRewriting
	stateDone
)

func (s jobState) String() string {
	switch s {
	case stateDiscovering:
		return "discovering"
	case stateFetching:
		return "fetching"
	case statePersisting:
		return "persisting"
	case stateRewriting:
		return "rewriting"
	default:
		return "done"
	}
}

// Mirrorer converts one rendered page into a self-contained offline
// bundle: it discovers every resource reference in the markup, fetches
// the same-origin ones under a concurrency bound, persists them under
// the output directory, and rewrites the markup so references resolve
// locally. All state is job-scoped; a Mirrorer is used once.
type Mirrorer struct {
	norm    *Normalizer
	store   *AssetStore
	fetcher *Fetcher
	rewrite *Rewriter
	opts    Options
	state   jobState
	log     *slog.Logger
}

// New builds a job for one page. originURL is the page's final URL after
// redirects; outputDir must be creatable. An uncreatable directory is
// the one error that fails the whole job up front.
func New(originURL, outputDir string, opts Options) (*Mirrorer, error) {
	if opts.Rules == nil {
		opts.Rules = DefaultRules
	}
	if err := ValidateRules(opts.Rules); err != nil {
		return nil, models.NewMirrorError(models.ErrCodeInvalidInput, "invalid rewrite rules", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	norm, err := NewNormalizer(originURL)
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeInvalidInput,
			fmt.Sprintf("invalid origin URL %s", originURL), err)
	}
	store, err := NewAssetStore(outputDir)
	if err != nil {
		return nil, err
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(opts.FetcherOptions)
	}
	return &Mirrorer{
		norm:    norm,
		store:   store,
		fetcher: fetcher,
		rewrite: NewRewriter(opts.Rules, norm, store),
		opts:    opts,
		state:   stateDiscovering,
		log:     slog.With("component", "mirror", "origin", norm.Origin()),
	}, nil
}

// fetchOutcome pairs one distinct in-scope URL with its fetch result.
type fetchOutcome struct {
	url  string
	body []byte
	err  error
}

// Run executes the job: discover, fetch behind a barrier, persist,
// rewrite, emit. A single resource failing never aborts the job; a
// timeout finalizes with whatever succeeded, and only a timeout with
// zero mirrored resources surfaces as a job failure.
func (m *Mirrorer) Run(ctx context.Context, html string) (*Result, error) {
	if m.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.JobTimeout)
		defer cancel()
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeInvalidInput, "parse markup", err)
	}

	// ── 1. Discover ──────────────────────────────────────────────────
	refs := m.rewrite.Collect(doc)
	var summary models.Summary
	fetchSet := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	skipped := make(map[string]bool)
	for _, ref := range refs {
		if !ref.Fetch {
			if !ref.InScope && ref.Tag != "a" && !skipped[ref.AbsURL] {
				skipped[ref.AbsURL] = true
				summary.SkippedOutOfScope++
			}
			continue
		}
		if seen[ref.AbsURL] {
			continue
		}
		seen[ref.AbsURL] = true
		fetchSet = append(fetchSet, ref.AbsURL)
	}
	summary.Attempted = len(fetchSet)
	m.state = stateFetching
	m.log.Info("references discovered",
		"total", len(refs), "distinct_in_scope", len(fetchSet))

	// ── 2. Fetch behind a barrier ────────────────────────────────────
	// All outcomes are known before any rewriting starts, so the
	// rewrite pass never interleaves with I/O and output order depends
	// only on document order.
	outcomes := m.fetchAll(ctx, fetchSet)
	m.state = statePersisting

	// ── 3. Persist ───────────────────────────────────────────────────
	m.persistAll(outcomes, &summary)

	// ── 4. Stylesheet pass ───────────────────────────────────────────
	// url() references inside downloaded stylesheets resolve against
	// the stylesheet itself, not the document. Their in-scope targets
	// get a second fetch round, then each stylesheet is rewritten in
	// place with paths relative to its own bundle location.
	type stylesheet struct {
		url  string
		rec  *AssetRecord
		body []byte
	}
	var sheets []stylesheet
	var cssSet []string
	for _, out := range outcomes {
		if out.err != nil {
			continue
		}
		rec, ok := m.store.Lookup(out.url)
		if !ok || !rec.Persisted || !isStylesheet(rec.LocalPath) {
			continue
		}
		sheets = append(sheets, stylesheet{url: out.url, rec: rec, body: out.body})
		for _, ref := range m.rewrite.StylesheetRefs(out.url, out.body) {
			if !ref.Fetch {
				if !ref.InScope && !skipped[ref.AbsURL] {
					skipped[ref.AbsURL] = true
					summary.SkippedOutOfScope++
				}
				continue
			}
			if seen[ref.AbsURL] {
				continue
			}
			seen[ref.AbsURL] = true
			cssSet = append(cssSet, ref.AbsURL)
		}
	}
	if len(cssSet) > 0 {
		summary.Attempted += len(cssSet)
		m.log.Info("stylesheet references discovered", "distinct_in_scope", len(cssSet))
		m.persistAll(m.fetchAll(ctx, cssSet), &summary)
	}
	for _, sh := range sheets {
		rewritten := m.rewrite.RewriteStylesheet(sh.url, sh.rec.LocalPath, sh.body)
		if err := m.store.Persist(sh.rec, rewritten); err != nil {
			m.log.Warn("stylesheet not rewritten in place", "url", sh.url, "error", err)
		}
	}
	m.state = stateRewriting

	// ── 5. Rewrite ───────────────────────────────────────────────────
	m.rewrite.Rewrite(doc)
	out, err := doc.Html()
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeInternal, "serialize rewritten markup", err)
	}
	m.state = stateDone

	if ctx.Err() != nil && summary.Mirrored == 0 && summary.Attempted > 0 {
		return nil, models.NewMirrorError(models.ErrCodeJobFailed,
			"job timed out with no resources mirrored", ctx.Err())
	}

	if err := m.writeDocument(out); err != nil {
		return nil, err
	}
	m.log.Info("mirror complete",
		"attempted", summary.Attempted,
		"mirrored", summary.Mirrored,
		"skipped_out_of_scope", summary.SkippedOutOfScope,
		"failed", summary.Failed)
	return &Result{HTML: out, Summary: summary}, nil
}

// fetchAll downloads a set of distinct URLs under the concurrency bound
// and returns all outcomes once every fetch has finished or given up.
// Outcomes are indexed by input position, never by completion order.
func (m *Mirrorer) fetchAll(ctx context.Context, urls []string) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(urls))
	sem := make(chan struct{}, m.opts.Concurrency)
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = fetchOutcome{url: u, err: models.NewMirrorError(
					models.ErrCodeTimeout, "job deadline reached before fetch", ctx.Err())}
				return
			}
			body, err := m.fetcher.Fetch(ctx, u)
			outcomes[i] = fetchOutcome{url: u, body: body, err: err}
		}(i, u)
	}
	wg.Wait()
	return outcomes
}

// persistAll writes successful fetches to disk and folds every outcome
// into the summary. A failed fetch or write only bumps the failure
// count; the resource's reference stays untouched in the markup.
func (m *Mirrorer) persistAll(outcomes []fetchOutcome, summary *models.Summary) {
	for _, out := range outcomes {
		if out.err != nil {
			summary.Failed++
			m.log.Warn("resource skipped", "url", out.url, "error", out.err)
			continue
		}
		rec, _ := m.store.ResolveOrCreate(out.url)
		if err := m.store.Persist(rec, out.body); err != nil {
			summary.Failed++
			m.log.Warn("resource not persisted", "url", out.url, "error", err)
			continue
		}
		summary.Mirrored++
	}
}

// writeDocument persists the primary document at the bundle root.
func (m *Mirrorer) writeDocument(html string) error {
	dest := filepath.Join(m.store.OutputDir(), "index.html")
	if err := os.WriteFile(dest, []byte(html), 0o644); err != nil {
		return models.NewMirrorError(models.ErrCodeJobFailed,
			fmt.Sprintf("write primary document %s", dest), err)
	}
	return nil
}
