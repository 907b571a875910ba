package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Renderer  RendererConfig
	Mirror    MirrorConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// RendererConfig controls page rendering behavior.
type RendererConfig struct {
	// Mode selects the rendering strategy: "auto", "http", or "browser".
	// In auto mode the HTTP engine runs first and the browser is used
	// only when the markup looks like an unrendered SPA shell.
	Mode string // default: "auto"

	// NavigationTimeout is the max time for page navigation alone.
	NavigationTimeout time.Duration // default: 15s

	// DefaultTimeout is the per-render deadline.
	DefaultTimeout time.Duration // default: 30s

	// SettleWait is the extra wait after the DOM stabilises, giving
	// dashboard widgets time to finish painting.
	SettleWait time.Duration // default: 2s

	// HTTPTimeout is the deadline for the plain HTTP engine.
	HTTPTimeout time.Duration // default: 10s
}

// MirrorConfig controls the resource mirroring engine.
type MirrorConfig struct {
	// OutputRoot is the directory under which bundles are created.
	OutputRoot string // default: "mirrors"

	// Concurrency bounds the number of in-flight resource fetches per job.
	Concurrency int // default: 8

	// ResourceTimeout is the per-resource fetch deadline.
	ResourceTimeout time.Duration // default: 20s

	// JobTimeout is the whole-job deadline. A job that times out keeps
	// whatever it mirrored before the deadline.
	JobTimeout time.Duration // default: 2m

	// MaxBodySize caps a single resource body in bytes.
	MaxBodySize int64 // default: 10MB

	// UserAgent is sent with every resource fetch.
	UserAgent string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// JobsConfig controls the in-memory job registry.
type JobsConfig struct {
	// MaxEntries is the maximum number of retained jobs.
	MaxEntries int // default: 500

	// TTL is how long a finished job stays queryable.
	TTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PORT_HOST", "0.0.0.0"),
			Port: envIntOr("PORT_HTTP_PORT", 8080),
			Mode: envOr("PORT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("PORT_HEADLESS", true),
			MaxPages:   envIntOr("PORT_MAX_PAGES", 4),
			NoSandbox:  envBoolOr("PORT_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PORT_BROWSER_BIN"),
		},
		Renderer: RendererConfig{
			Mode:              envOr("PORT_RENDER_MODE", "auto"),
			NavigationTimeout: envDurationOr("PORT_NAV_TIMEOUT", 15*time.Second),
			DefaultTimeout:    envDurationOr("PORT_RENDER_TIMEOUT", 30*time.Second),
			SettleWait:        envDurationOr("PORT_SETTLE_WAIT", 2*time.Second),
			HTTPTimeout:       envDurationOr("PORT_HTTP_TIMEOUT", 10*time.Second),
		},
		Mirror: MirrorConfig{
			OutputRoot:      envOr("PORT_OUTPUT_ROOT", "mirrors"),
			Concurrency:     envIntOr("PORT_FETCH_CONCURRENCY", 8),
			ResourceTimeout: envDurationOr("PORT_RESOURCE_TIMEOUT", 20*time.Second),
			JobTimeout:      envDurationOr("PORT_JOB_TIMEOUT", 2*time.Minute),
			MaxBodySize:     envInt64Or("PORT_MAX_BODY_SIZE", 10*1024*1024),
			UserAgent:       envOr("PORT_USER_AGENT", defaultUserAgent),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PORT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PORT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PORT_RATE_RPS", 5.0),
			Burst:             envIntOr("PORT_RATE_BURST", 10),
		},
		Jobs: JobsConfig{
			MaxEntries: envIntOr("PORT_JOBS_MAX_ENTRIES", 500),
			TTL:        envDurationOr("PORT_JOBS_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("PORT_LOG_LEVEL", "info"),
			Format: envOr("PORT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
