package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sandeshsk12/port/config"
	"github.com/sandeshsk12/port/jobs"
	"github.com/sandeshsk12/port/mirror"
	"github.com/sandeshsk12/port/models"
	"github.com/sandeshsk12/port/renderer"
	"github.com/sandeshsk12/port/webhook"
)

// PostMirror returns a handler for POST /api/v1/mirror. The job runs in
// the background; the response carries the job ID for polling.
func PostMirror(rend *renderer.Renderer, store *jobs.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MirrorRequest
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
		outputDir := filepath.Join(cfg.Mirror.OutputRoot, bundleName(req.Name, req.URL, job.ID))
		store.Update(job.ID, func(j *models.MirrorJob) {
			j.OutputDir = outputDir
			j.Total = 1
		})

		go runMirror(rend, store, cfg, job.ID, req, outputDir)

		c.JSON(http.StatusOK, models.MirrorResponse{
			Success: true,
			ID:      job.ID,
			Status:  models.JobStatusProcessing,
		})
	}
}

// GetMirror returns a handler for GET /api/v1/mirror/:id.
func GetMirror(store *jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.MirrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "mirror job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, models.MirrorStatusResponse{
			ID:        job.ID,
			URL:       job.URL,
			Status:    job.Status,
			OutputDir: job.OutputDir,
			Completed: job.Completed,
			Total:     job.Total,
			Pages:     job.Pages,
			Summary:   job.Summary,
			Error:     job.Error,
		})
	}
}

// runMirror renders the page and mirrors it into outputDir.
func runMirror(rend *renderer.Renderer, store *jobs.Store, cfg *config.Config, jobID string, req models.MirrorRequest, outputDir string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	page, err := mirrorPage(ctx, rend, cfg, pageSpec{
		URL:         req.URL,
		OutputDir:   outputDir,
		Mode:        req.FetchMode,
		Stealth:     req.Stealth,
		Concurrency: req.Concurrency,
	})
	if err != nil {
		failJob(store, jobID, err)
		notify(store, jobID, req.WebhookURL, req.WebhookSecret, webhook.EventMirrorFailed)
		return
	}

	store.Update(jobID, func(j *models.MirrorJob) {
		j.Completed = 1
		j.Pages = append(j.Pages, page.result)
		j.Summary.Add(page.result.Summary)
		if page.result.Summary.Failed > 0 {
			j.Status = models.JobStatusPartial
		} else {
			j.Status = models.JobStatusCompleted
		}
	})
	slog.Info("mirror job finished", "id", jobID, "url", req.URL,
		"mirrored", page.result.Summary.Mirrored, "failed", page.result.Summary.Failed)
	notify(store, jobID, req.WebhookURL, req.WebhookSecret, webhook.EventMirrorCompleted)
}

// pageSpec describes one page-mirror run shared by the mirror and site
// handlers.
type pageSpec struct {
	URL         string
	OutputDir   string
	Mode        string
	Stealth     bool
	Concurrency int
}

// mirroredPage is the in-memory outcome of one page-mirror run. The
// HTML is kept so the site handler can rewire navigation afterwards.
type mirroredPage struct {
	result models.PageResult
	html   string
}

// mirrorPage renders one page and mirrors its resources. Rendering is
// strictly sequential per page; only resource fetches run concurrently.
func mirrorPage(ctx context.Context, rend *renderer.Renderer, cfg *config.Config, spec pageSpec) (*mirroredPage, error) {
	res, err := rend.Render(ctx, &renderer.Request{
		URL:     spec.URL,
		Timeout: cfg.Renderer.DefaultTimeout,
		Stealth: spec.Stealth,
		Mode:    spec.Mode,
	})
	if err != nil {
		return nil, err
	}

	concurrency := spec.Concurrency
	if concurrency <= 0 {
		concurrency = cfg.Mirror.Concurrency
	}
	m, err := mirror.New(res.FinalURL, spec.OutputDir, mirror.Options{
		Concurrency: concurrency,
		FetcherOptions: mirror.FetcherOptions{
			Timeout:     cfg.Mirror.ResourceTimeout,
			MaxBodySize: cfg.Mirror.MaxBodySize,
			UserAgent:   cfg.Mirror.UserAgent,
		},
	})
	if err != nil {
		return nil, err
	}
	result, err := m.Run(ctx, res.HTML)
	if err != nil {
		return nil, err
	}

	return &mirroredPage{
		result: models.PageResult{
			URL:      res.FinalURL,
			Title:    res.Title,
			Document: filepath.Join(filepath.Base(spec.OutputDir), "index.html"),
			Engine:   res.EngineName,
			Summary:  result.Summary,
		},
		html: result.HTML,
	}, nil
}

// failJob marks a job failed with a typed error detail.
func failJob(store *jobs.Store, jobID string, err error) {
	detail := errorDetail(err)
	store.Update(jobID, func(j *models.MirrorJob) {
		j.Status = models.JobStatusFailed
		j.Error = detail
	})
	slog.Error("mirror job failed", "id", jobID, "code", detail.Code, "error", err)
}

// errorDetail converts any error to an API-facing detail.
func errorDetail(err error) *models.ErrorDetail {
	var me *models.MirrorError
	if errors.As(err, &me) {
		return me.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// notify delivers the final job snapshot to the caller's webhook.
func notify(store *jobs.Store, jobID, url, secret, eventType string) {
	if url == "" {
		return
	}
	job, ok := store.Get(jobID)
	if !ok {
		return
	}
	webhook.DeliverAsync(url, secret, &webhook.Event{
		Type:      eventType,
		JobID:     jobID,
		Timestamp: time.Now().Unix(),
		Data:      job,
	})
}

// bundleName picks the bundle directory name: the caller's name when
// given, otherwise a host slug suffixed with the job ID so two jobs
// never share an output directory.
func bundleName(name, rawURL, jobID string) string {
	if name != "" {
		return mirror.Slugify(name)
	}
	host := "page"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return mirror.Slugify(host) + "-" + jobID
}
