package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	neturl "net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sandeshsk12/port/api"
	"github.com/sandeshsk12/port/config"
	"github.com/sandeshsk12/port/jobs"
	"github.com/sandeshsk12/port/mirror"
	"github.com/sandeshsk12/port/renderer"
)

func main() {
	// ── 0. Flags: one-shot CLI mode ─────────────────────────────────
	// With -url the process mirrors a single page and exits; without
	// it, the HTTP API server starts.
	urlFlag := flag.String("url", "", "mirror this URL once and exit")
	outFlag := flag.String("out", "", "output directory for -url mode (default: mirrors/<host>)")
	browserFlag := flag.Bool("browser", false, "force browser rendering in -url mode")
	flag.Parse()

	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	if *urlFlag != "" {
		os.Exit(runOnce(cfg, *urlFlag, *outFlag, *browserFlag))
	}

	slog.Info("port starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// ── 3. Initialise renderer engines ──────────────────────────────
	httpEng := renderer.NewHTTPEngine(cfg.Renderer.HTTPTimeout)

	var browser *renderer.BrowserEngine
	if cfg.Renderer.Mode != "http" {
		var err error
		browser, err = renderer.NewBrowserEngine(cfg.Browser, cfg.Renderer)
		if err != nil {
			slog.Error("failed to initialise browser engine", "error", err)
			os.Exit(1)
		}
		defer browser.Close()
	}
	rend := renderer.New(cfg.Renderer.Mode, httpEng, browser)

	// ── 4. Initialise job registry ──────────────────────────────────
	store := jobs.New(cfg.Jobs.MaxEntries, cfg.Jobs.TTL)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(rend, browser, store, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// browser.Close() runs via defer: drains page pool and kills Chrome.
	slog.Info("port stopped")
}

// runOnce mirrors a single URL to disk and returns the process exit code.
func runOnce(cfg *config.Config, url, out string, forceBrowser bool) int {
	httpEng := renderer.NewHTTPEngine(cfg.Renderer.HTTPTimeout)

	var browser *renderer.BrowserEngine
	mode := "http"
	if forceBrowser || cfg.Renderer.Mode != "http" {
		var err error
		browser, err = renderer.NewBrowserEngine(cfg.Browser, cfg.Renderer)
		if err != nil {
			slog.Warn("browser unavailable, continuing HTTP-only", "error", err)
		} else {
			defer browser.Close()
			mode = cfg.Renderer.Mode
			if forceBrowser {
				mode = "browser"
			}
		}
	}
	rend := renderer.New(mode, httpEng, browser)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mirror.JobTimeout)
	defer cancel()

	res, err := rend.Render(ctx, &renderer.Request{URL: url, Timeout: cfg.Renderer.DefaultTimeout})
	if err != nil {
		slog.Error("render failed", "url", url, "error", err)
		return 1
	}

	if out == "" {
		host := "page"
		if u, err := neturl.Parse(res.FinalURL); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
		out = filepath.Join(cfg.Mirror.OutputRoot, mirror.Slugify(host))
	}
	m, err := mirror.New(res.FinalURL, out, mirror.Options{
		Concurrency: cfg.Mirror.Concurrency,
		FetcherOptions: mirror.FetcherOptions{
			Timeout:     cfg.Mirror.ResourceTimeout,
			MaxBodySize: cfg.Mirror.MaxBodySize,
			UserAgent:   cfg.Mirror.UserAgent,
		},
	})
	if err != nil {
		slog.Error("mirror setup failed", "url", url, "error", err)
		return 1
	}
	result, err := m.Run(ctx, res.HTML)
	if err != nil {
		slog.Error("mirror failed", "url", url, "error", err)
		return 1
	}

	slog.Info("bundle written",
		"dir", out,
		"attempted", result.Summary.Attempted,
		"mirrored", result.Summary.Mirrored,
		"skipped_out_of_scope", result.Summary.SkippedOutOfScope,
		"failed", result.Summary.Failed,
	)
	return 0
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
