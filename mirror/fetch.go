package mirror

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/sandeshsk12/port/models"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN pinned to
// http/1.1. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Fallback: without a spec the transport falls back to the
		// zero spec, which utls treats as HelloChrome_Auto.
		return
	}
	// Strip h2 from the ALPN extension so the server never negotiates
	// HTTP/2, which Go's http.Transport cannot frame over a utls conn.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// FetcherOptions tune one job's resource fetching.
type FetcherOptions struct {
	// Timeout is the per-resource deadline. Zero means 20s.
	Timeout time.Duration
	// MaxBodySize caps a single resource body in bytes. Zero means 10MB.
	MaxBodySize int64
	// UserAgent overrides the default Chrome user agent string.
	UserAgent string
}

const (
	defaultFetchTimeout = 20 * time.Second
	defaultMaxBodySize  = 10 << 20
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// NewChromeTransport returns an http.Transport whose TLS handshake
// carries the Chrome fingerprint. Plain HTTP connections go through the
// default dialer untouched.
func NewChromeTransport() *http.Transport {
	return &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("fetcher: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 8,
	}
}

// Fetcher retrieves one resource at a time over a client with a
// Chrome-like TLS fingerprint. It does not retry and follows whatever
// redirects the transport follows by default; policy beyond that is
// the orchestrator's concern.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
}

// NewFetcher builds a Fetcher. The zero-value options give sane defaults.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client: &http.Client{
			Transport: NewChromeTransport(),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout:     opts.Timeout,
		maxBodySize: opts.MaxBodySize,
		userAgent:   opts.UserAgent,
	}
}

// Fetch retrieves one resource. Any network error or non-2xx status is
// returned as a FETCH_FAILED error; the caller degrades by keeping the
// original reference in the markup.
func (f *Fetcher) Fetch(ctx context.Context, absURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeFetchFailed,
			fmt.Sprintf("build request for %s", absURL), err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeFetchFailed,
			fmt.Sprintf("fetch %s", absURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewMirrorError(models.ErrCodeFetchFailed,
			fmt.Sprintf("fetch %s: status %d", absURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeFetchFailed,
			fmt.Sprintf("read body of %s", absURL), err)
	}
	return body, nil
}
