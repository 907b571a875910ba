package models

// Summary is the per-page resource accounting reported to the caller.
type Summary struct {
	// Attempted is the number of distinct in-scope resources dispatched.
	Attempted int `json:"attempted"`

	// Mirrored is the number of resources fetched and persisted.
	Mirrored int `json:"mirrored"`

	// SkippedOutOfScope is the number of distinct resolved references
	// left as absolute remote links because their host differs from
	// the page origin.
	SkippedOutOfScope int `json:"skipped_out_of_scope"`

	// Failed is the number of in-scope resources whose fetch or
	// persist failed; their references are left untouched.
	Failed int `json:"failed"`
}

// Add accumulates another summary into this one.
func (s *Summary) Add(other Summary) {
	s.Attempted += other.Attempted
	s.Mirrored += other.Mirrored
	s.SkippedOutOfScope += other.SkippedOutOfScope
	s.Failed += other.Failed
}

// PageResult reports the outcome of mirroring one page within a job.
type PageResult struct {
	// URL is the rendered page URL.
	URL string `json:"url"`

	// Title is the document title, when extractable.
	Title string `json:"title,omitempty"`

	// Document is the bundle-relative path of the rewritten document.
	Document string `json:"document"`

	// Engine records how the page was rendered: "http" or "browser".
	Engine string `json:"engine,omitempty"`

	// Summary is the resource accounting for this page.
	Summary Summary `json:"summary"`

	// Error is populated when the page-level job failed.
	Error *ErrorDetail `json:"error,omitempty"`
}

// Job status values.
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusPartial    = "partial"
	JobStatusFailed     = "failed"
)

// MirrorJob tracks an asynchronous mirror job in the job store.
type MirrorJob struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Status    string       `json:"status"` // "processing", "completed", "partial", "failed"
	OutputDir string       `json:"output_dir,omitempty"`
	CreatedAt int64        `json:"created_at"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Pages     []PageResult `json:"pages,omitempty"`
	Summary   Summary      `json:"summary"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// MirrorResponse is the immediate response for POST /api/v1/mirror and
// POST /api/v1/site, and the error envelope for middleware rejections.
type MirrorResponse struct {
	Success bool         `json:"success"`
	ID      string       `json:"id,omitempty"`
	Status  string       `json:"status,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// MirrorStatusResponse is the response for GET /api/v1/mirror/:id.
type MirrorStatusResponse struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Status    string       `json:"status"`
	OutputDir string       `json:"output_dir,omitempty"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Pages     []PageResult `json:"pages,omitempty"`
	Summary   Summary      `json:"summary"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// PoolStats is a snapshot of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}
