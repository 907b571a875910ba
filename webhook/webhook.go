package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types emitted by mirror jobs.
const (
	EventMirrorCompleted = "mirror.completed"
	EventMirrorFailed    = "mirror.failed"
	EventSitePage        = "site.page"
	EventSiteCompleted   = "site.completed"
	EventSiteFailed      = "site.failed"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string      `json:"type"`
	JobID     string      `json:"job_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// errEndpointRejected marks a 4xx response: the receiver saw the
// delivery and refused it, so retrying the same payload cannot help.
var errEndpointRejected = errors.New("webhook: endpoint rejected delivery")

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
// Headers: X-Port-Signature: sha256=<hex>, X-Port-Event: <event type>
// so receivers can route without parsing the body.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Port-Webhook/1.0")
	req.Header.Set("X-Port-Event", event.Type)

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-Port-Signature", "sha256="+sig)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: status %d", errEndpointRejected, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends a webhook event asynchronously with up to 3 retries.
// Mirror jobs run for minutes, so the backoff is generous enough for
// receivers that spin down between deliveries: 2s, 15s, 60s. A 4xx
// response stops retrying immediately.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		delays := []time.Duration{0, 2 * time.Second, 15 * time.Second, time.Minute}
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			if errors.Is(err, errEndpointRejected) {
				slog.Warn("webhook rejected, not retrying",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"error", err,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}
