// Package rcclient is a thin HTTP client for the engine's loopback
// control-plane API (C6): current transfer list, aggregate speed/bytes,
// checking queue, and a noop liveness probe. Every call has a bounded
// timeout and falls back to "unknown" rather than propagating — the
// control plane is a nice-to-have for early termination and queue
// capture, never a hard dependency for a stage to proceed.
package rcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/saupload/saupload/internal/constants"
	"github.com/saupload/saupload/internal/ratelimit"
)

// retryLogger satisfies retryablehttp's LeveledLogger interface without
// pulling the session's structured logger into this low-level package. It
// collects Error and Warn messages in memory; nothing reads them back.
type retryLogger struct {
	entries []string
}

func (l *retryLogger) Error(msg string, kv ...interface{}) { l.entries = append(l.entries, msg) }
func (l *retryLogger) Info(msg string, kv ...interface{})  {}
func (l *retryLogger) Debug(msg string, kv ...interface{}) {}
func (l *retryLogger) Warn(msg string, kv ...interface{})  { l.entries = append(l.entries, msg) }

// Client is a stateless HTTP client for one control-plane endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	user       string
	pass       string
	limiter    *ratelimit.RateLimiter
}

// New creates a client targeting baseURL (e.g. "http://127.0.0.1:5572").
// user/pass are optional basic-auth credentials; pass empty strings when
// the control plane has no_auth set.
func New(baseURL, user, pass string) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.MaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Logger = &retryLogger{}
	retryClient.HTTPClient.Timeout = constants.RCRequestTimeout

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		user:       user,
		pass:       pass,
		limiter:    ratelimit.NewPollLimiter(),
	}
}

// TransferInfo is one entry in the "transferring" array.
type TransferInfo struct {
	Name  string  `json:"name"`
	Size  int64   `json:"size"`
	Bytes int64   `json:"bytes"`
	Speed float64 `json:"speed"`
	ETA   float64 `json:"eta"`
}

// Stats is core/stats's response shape.
type Stats struct {
	Bytes       int64          `json:"bytes"`
	Speed       float64        `json:"speed"`
	ETA         float64        `json:"eta"`
	Transferring []TransferInfo `json:"transferring"`
	Checking    []string       `json:"checking"`
	TotalBytes  int64          `json:"totalBytes"`
}

// Stats polls core/stats, paced by the poll rate limiter (spec §4.6:
// "polling cadence during a stage is ~2-3s"). On any failure — timeout,
// connection refused, bad JSON — it returns the zero Stats and ok=false
// rather than an error; callers treat ok=false as "unknown".
func (c *Client) Stats(ctx context.Context) (Stats, bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Stats{}, false
	}

	var stats Stats
	if err := c.post(ctx, "core/stats", nil, &stats); err != nil {
		return Stats{}, false
	}
	return stats, true
}

// Noop probes liveness. It does not consume the poll rate limiter's
// budget — it is also used for the daemon-startup-wait loop, which needs
// a tighter cadence than the in-stage poller.
func (c *Client) Noop(ctx context.Context) bool {
	var discard map[string]any
	err := c.post(ctx, "rc/noop", nil, &discard)
	return err == nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}

	ctx, cancel := context.WithTimeout(ctx, constants.RCRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WaitUntilReachable polls Noop until it succeeds or the deadline passes,
// used after spawning a standalone daemon (spec §4.6).
func (c *Client) WaitUntilReachable(ctx context.Context, deadline time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	if c.Noop(ctx) {
		return true
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.Noop(ctx) {
				return true
			}
		}
	}
}
