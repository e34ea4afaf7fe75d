// Package httpclient downloads documents from plain HTTP collaborators, such
// as GTFS feed hosts, with a size cap and optional retries.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/richxcame/ride-booking/pkg/resilience"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxBytes  = 64 << 20
	defaultUserAgent = "ride-booking/1.0"
	errorBodyLimit   = 512
)

// ErrTooLarge is returned when a response body exceeds the configured cap.
var ErrTooLarge = errors.New("response body exceeds size limit")

// HTTPError is returned for non-2xx responses. Body holds at most the first
// 512 bytes of the response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client fetches absolute URLs.
type Client struct {
	httpClient  *http.Client
	retryConfig *resilience.RetryConfig
	maxBytes    int64
	userAgent   string
}

// Option configures a Client.
type Option func(*Client)

// New creates a client. A non-positive timeout keeps the 30s default.
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   defaultMaxBytes,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithRetry retries failed fetches with cfg.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = &cfg
	}
}

// WithDefaultRetry retries 5xx, 408, 429 and transport errors.
func WithDefaultRetry() Option {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableChecker = isRetryable
	return WithRetry(cfg)
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Fetch GETs url and returns the whole body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.retryConfig == nil {
		return c.fetchOnce(ctx, url)
	}

	result, err := resilience.Retry(ctx, *c.retryConfig, func(ctx context.Context) (interface{}, error) {
		return c.fetchOnce(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if resp.ContentLength > c.maxBytes {
		return nil, ErrTooLarge
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
	}
	return true
}
