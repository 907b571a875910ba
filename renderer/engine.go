// Package renderer turns a live URL into final markup. Two engines are
// available: a plain HTTP engine for server-rendered pages and a
// browser engine for script-rendered ones, with automatic escalation
// when the HTTP result looks like an unrendered SPA shell.
package renderer

import (
	"context"
	"time"
)

// Request describes one page render.
type Request struct {
	URL string
	// Timeout is the per-render deadline. Zero means the engine default.
	Timeout time.Duration
	// Stealth enables bot-detection evasion on browser renders.
	Stealth bool
	// Mode overrides the renderer's configured mode for this request:
	// "auto", "http", or "browser". Empty means the configured mode.
	Mode string
	// Headers are extra request headers, overriding engine defaults.
	Headers map[string]string
}

// Result is a rendered page. FinalURL is the URL after redirects and is
// what the mirroring origin is derived from.
type Result struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

// Engine renders one page. Implementations must be safe for concurrent
// use.
type Engine interface {
	Name() string
	Render(ctx context.Context, req *Request) (*Result, error)
}
