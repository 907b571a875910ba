package renderer

import (
	"context"
	"log/slog"

	"github.com/sandeshsk12/port/models"
)

// Renderer picks an engine per request. In auto mode the HTTP engine
// runs first and the browser takes over when the markup looks like an
// unrendered shell or the HTTP render fails outright.
type Renderer struct {
	mode    string
	httpEng *HTTPEngine
	browser *BrowserEngine
}

// New wires a renderer. browser may be nil, in which case every request
// is served by the HTTP engine regardless of mode.
func New(mode string, httpEng *HTTPEngine, browser *BrowserEngine) *Renderer {
	if mode == "" {
		mode = "auto"
	}
	return &Renderer{mode: mode, httpEng: httpEng, browser: browser}
}

// Render produces final markup for one URL.
func (r *Renderer) Render(ctx context.Context, req *Request) (*Result, error) {
	mode := r.mode
	if req.Mode != "" {
		mode = req.Mode
	}
	if r.browser == nil && mode != "http" {
		mode = "http"
	}

	switch mode {
	case "http":
		return r.httpEng.Render(ctx, req)
	case "browser":
		return r.renderBrowser(ctx, req)
	default:
		res, err := r.httpEng.Render(ctx, req)
		if err == nil && !NeedsBrowser(res.HTML) {
			return res, nil
		}
		if err != nil {
			slog.Info("http render failed, escalating to browser", "url", req.URL, "error", err)
		} else {
			slog.Info("markup looks script-rendered, escalating to browser", "url", req.URL)
		}
		return r.renderBrowser(ctx, req)
	}
}

func (r *Renderer) renderBrowser(ctx context.Context, req *Request) (*Result, error) {
	if r.browser == nil {
		return nil, models.NewMirrorError(models.ErrCodeRender,
			"browser engine not available", nil)
	}
	// Clone so the caller's request is not mutated.
	br := *req
	if br.Stealth {
		if br.Headers == nil {
			br.Headers = map[string]string{}
		}
		if _, ok := br.Headers["Referer"]; !ok {
			if ref := referer(br.URL); ref != "" {
				br.Headers["Referer"] = ref
			}
		}
	}
	return r.browser.Render(ctx, &br)
}
