package renderer

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/sandeshsk12/port/config"
	"github.com/sandeshsk12/port/models"
)

// BrowserEngine renders pages in headless Chromium through a reusable
// page pool. Safe for concurrent use; one instance serves the whole
// process.
type BrowserEngine struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	rcfg        config.RendererConfig
	activePages atomic.Int32
}

// NewBrowserEngine launches a headless browser and initialises the
// reusable page pool.
func NewBrowserEngine(cfg config.BrowserConfig, rcfg config.RendererConfig) (*BrowserEngine, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewMirrorError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	pool := rod.NewPagePool(cfg.MaxPages)
	slog.Info("page pool created", "maxPages", cfg.MaxPages)

	return &BrowserEngine{
		browser:  browser,
		pagePool: pool,
		cfg:      cfg,
		rcfg:     rcfg,
	}, nil
}

func (e *BrowserEngine) Name() string { return "browser" }

// Stats returns a snapshot of the pool's current state.
func (e *BrowserEngine) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    e.cfg.MaxPages,
		ActivePages: int(e.activePages.Load()),
	}
}

// Render navigates a pooled page to the URL, waits for the DOM to
// stabilise plus a short settle window, and extracts the final markup.
//
// Order matters inside: stealth injection and extra headers must be
// installed before Navigate or they take no effect for the load.
func (e *BrowserEngine) Render(ctx context.Context, req *Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.rcfg.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.activePages.Add(1)
	defer e.activePages.Add(-1)

	page, err := e.pagePool.Get(func() (*rod.Page, error) {
		return e.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	// Cleanup uses the original page reference, not the context-bound
	// one, so the pool return succeeds even after the deadline fires.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		e.pagePool.Put(page)
	}()

	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	if len(req.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(req.Headers),
		}.Call(page)
	}

	p := page.Context(ctx)

	nav := p
	if e.rcfg.NavigationTimeout > 0 {
		nav = p.Timeout(e.rcfg.NavigationTimeout)
	}
	if navErr := nav.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}
	// Give charting widgets and lazy sections time to paint.
	if e.rcfg.SettleWait > 0 {
		select {
		case <-time.After(e.rcfg.SettleWait):
		case <-ctx.Done():
		}
	}

	// Status code via the performance API, no CDP event listeners needed.
	statusCode := 0
	if res, evalErr := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}

	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" || finalURL == "about:blank" {
		finalURL = req.URL
	}

	return &Result{
		HTML:       rawHTML,
		Title:      title,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// Close drains the page pool and kills the browser process. Call on
// graceful shutdown to prevent zombie Chrome processes.
func (e *BrowserEngine) Close() {
	slog.Info("browser engine shutting down: draining page pool")
	e.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	e.browser.MustClose()
	slog.Info("browser engine shutdown complete")
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing errors. Used for optional metadata extraction.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed errors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.MirrorError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewMirrorError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewMirrorError(models.ErrCodeTimeout, "render canceled", err)
	default:
		return models.NewMirrorError(models.ErrCodeRender, msg, err)
	}
}

// referer builds a plausible Referer for a target URL. The renderer
// injects it into request headers before a stealth render.
func referer(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
}
