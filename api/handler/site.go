package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sandeshsk12/port/config"
	"github.com/sandeshsk12/port/jobs"
	"github.com/sandeshsk12/port/mirror"
	"github.com/sandeshsk12/port/models"
	"github.com/sandeshsk12/port/renderer"
	"github.com/sandeshsk12/port/webhook"
)

// PostSite returns a handler for POST /api/v1/site. It mirrors the
// landing page plus every navigation tab discovered on it, one page at
// a time, then stitches the bundles together with rewired navigation
// and a top-level index.
func PostSite(rend *renderer.Renderer, store *jobs.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SiteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.MirrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		job := store.Create(req.URL, "")
		siteRoot := filepath.Join(cfg.Mirror.OutputRoot, bundleName(req.Name, req.URL, job.ID))
		store.Update(job.ID, func(j *models.MirrorJob) {
			j.OutputDir = siteRoot
		})

		go runSite(rend, store, cfg, job.ID, req, siteRoot)

		c.JSON(http.StatusOK, models.MirrorResponse{
			Success: true,
			ID:      job.ID,
			Status:  models.JobStatusProcessing,
		})
	}
}

// sitePage pairs one page to mirror with its slot in the site bundle.
type sitePage struct {
	label string
	slug  string
	url   string
}

// runSite renders the landing page, discovers its tabs, mirrors every
// page sequentially, then rewires navigation across the bundles.
func runSite(rend *renderer.Renderer, store *jobs.Store, cfg *config.Config, jobID string, req models.SiteRequest, siteRoot string) {
	perPage := time.Duration(req.Timeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(),
		perPage*time.Duration(req.MaxTabs+1))
	defer cancel()

	// ── 1. Render the landing page and discover tabs ─────────────────
	rootRes, err := rend.Render(ctx, &renderer.Request{
		URL:     req.URL,
		Timeout: cfg.Renderer.DefaultTimeout,
		Stealth: req.Stealth,
	})
	if err != nil {
		failJob(store, jobID, err)
		notify(store, jobID, req.WebhookURL, req.WebhookSecret, webhook.EventSiteFailed)
		return
	}

	tabs, err := renderer.DiscoverTabs(rootRes.HTML, rootRes.FinalURL)
	if err != nil {
		slog.Warn("tab discovery failed, mirroring landing page only",
			"id", jobID, "error", err)
		tabs = nil
	}

	pages := selectPages(siteLabel(rootRes.Title), rootRes.FinalURL, tabs, req.MaxTabs)
	store.Update(jobID, func(j *models.MirrorJob) {
		j.Total = len(pages)
	})
	slog.Info("site pages selected", "id", jobID, "pages", len(pages))

	links := make([]mirror.PageLink, len(pages))
	for i, p := range pages {
		links[i] = mirror.PageLink{Label: p.label, Slug: p.slug}
	}

	// ── 2. Mirror each page, strictly one render at a time ───────────
	mirrored := make(map[string]*mirroredPage, len(pages))
	for _, p := range pages {
		pageCtx, pageCancel := context.WithTimeout(ctx, perPage)
		page, err := mirrorPage(pageCtx, rend, cfg, pageSpec{
			URL:       p.url,
			OutputDir: filepath.Join(siteRoot, p.slug),
			Stealth:   req.Stealth,
		})
		pageCancel()

		store.Update(jobID, func(j *models.MirrorJob) {
			j.Completed++
			if err != nil {
				j.Pages = append(j.Pages, models.PageResult{
					URL:      p.url,
					Document: filepath.Join(p.slug, "index.html"),
					Error:    errorDetail(err),
				})
				return
			}
			page.result.Document = filepath.Join(p.slug, "index.html")
			j.Pages = append(j.Pages, page.result)
			j.Summary.Add(page.result.Summary)
		})
		if err != nil {
			slog.Warn("site page failed", "id", jobID, "url", p.url, "error", err)
			continue
		}
		mirrored[p.slug] = page
		notify(store, jobID, req.WebhookURL, req.WebhookSecret, webhook.EventSitePage)
	}

	// ── 3. Rewire navigation across bundles and write the index ──────
	for slug, page := range mirrored {
		linked, err := mirror.LinkTabs(page.html, links, slug)
		if err != nil {
			slog.Warn("nav linking failed, keeping page as mirrored",
				"id", jobID, "slug", slug, "error", err)
			continue
		}
		dest := filepath.Join(siteRoot, slug, "index.html")
		if err := os.WriteFile(dest, []byte(linked), 0o644); err != nil {
			slog.Warn("nav-linked document not written",
				"id", jobID, "path", dest, "error", err)
		}
	}
	if err := mirror.WriteIndex(siteRoot, siteLabel(rootRes.Title), links); err != nil {
		slog.Warn("site index not written", "id", jobID, "error", err)
	}

	// ── 4. Final status ──────────────────────────────────────────────
	store.Update(jobID, func(j *models.MirrorJob) {
		switch {
		case len(mirrored) == 0:
			j.Status = models.JobStatusFailed
			j.Error = &models.ErrorDetail{
				Code:    models.ErrCodeJobFailed,
				Message: "no pages could be mirrored",
			}
		case len(mirrored) < len(pages) || j.Summary.Failed > 0:
			j.Status = models.JobStatusPartial
		default:
			j.Status = models.JobStatusCompleted
		}
	})

	event := webhook.EventSiteCompleted
	if job, ok := store.Get(jobID); ok {
		if job.Status == models.JobStatusFailed {
			event = webhook.EventSiteFailed
		}
		slog.Info("site job finished", "id", jobID, "status", job.Status,
			"pages", len(pages), "mirrored_pages", len(mirrored))
	}
	notify(store, jobID, req.WebhookURL, req.WebhookSecret, event)
}

// selectPages picks the site bundle's pages: the landing page first
// under the fixed "home" slug, then discovered tabs up to maxTabs.
// Tabs without a followable URL and tabs pointing back at the landing
// page are dropped. A tab whose label slugifies to an already-used
// slug gets a numeric suffix so two pages never share a bundle
// directory.
func selectPages(rootLabel, rootURL string, tabs []renderer.Tab, maxTabs int) []sitePage {
	pages := []sitePage{{label: rootLabel, slug: "home", url: rootURL}}
	used := map[string]bool{"home": true}
	for _, tab := range tabs {
		if len(pages) > maxTabs {
			break
		}
		if tab.URL == "" || tab.URL == rootURL {
			// Script-only tab controls carry no link to follow.
			continue
		}
		slug := mirror.Slugify(tab.Label)
		for i := 2; used[slug]; i++ {
			slug = mirror.Slugify(tab.Label) + "-" + strconv.Itoa(i)
		}
		used[slug] = true
		pages = append(pages, sitePage{label: tab.Label, slug: slug, url: tab.URL})
	}
	return pages
}

// siteLabel picks the landing page's display name.
func siteLabel(title string) string {
	if title == "" {
		return "Home"
	}
	return title
}
