package renderer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/sandeshsk12/port/mirror"
	"github.com/sandeshsk12/port/models"
)

// HTTPEngine renders by plain GET over a Chrome-fingerprint transport.
// Fast, but blind to JavaScript; the caller escalates to the browser
// engine when the result looks like an unrendered application shell.
type HTTPEngine struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPEngine builds the engine. timeout applies when a request does
// not carry its own.
func NewHTTPEngine(timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEngine{
		client: &http.Client{
			Transport: mirror.NewChromeTransport(),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout: timeout,
	}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Render(ctx context.Context, req *Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeInvalidInput, "build render request", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeRender, "http render failed", err)
	}
	defer resp.Body.Close()

	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, models.NewMirrorError(models.ErrCodeRender, "read rendered body", err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return nil, models.NewMirrorError(models.ErrCodeRender,
			fmt.Sprintf("non-html or error status %d (content-type: %s)", resp.StatusCode, ct), nil)
	}

	htmlStr := string(body)
	return &Result{
		HTML:       htmlStr,
		Title:      extractTitle(htmlStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}

// spaRootIDs are mount points that a client-side framework fills in
// after load. An HTTP render whose body is just one of these is not the
// final markup.
var spaRootIDs = []string{"root", "app", "__next", "___gatsby", "q-app"}

// NeedsBrowser reports whether an HTTP-rendered document looks like an
// unrendered SPA shell: a near-empty visible body, a bare framework
// mount node, or a noscript plea for JavaScript dominating the content.
func NeedsBrowser(htmlStr string) bool {
	visible := extractVisibleText(htmlStr)
	if len(visible) < 200 {
		lower := strings.ToLower(htmlStr)
		for _, id := range spaRootIDs {
			if strings.Contains(lower, `id="`+id+`"`) {
				return true
			}
		}
		if strings.Contains(lower, "enable javascript") ||
			strings.Contains(lower, "javascript is required") {
			return true
		}
		// A page with almost no text and heavy script usage is most
		// likely rendered client side.
		if strings.Count(lower, "<script") >= 3 {
			return true
		}
	}
	return false
}

// extractVisibleText walks the tokenizer and concatenates text outside
// script and style elements.
func extractVisibleText(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var b strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				skip++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}
