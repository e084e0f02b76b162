// Package fetch provides the HTTP client used against the directory host and the probe host.
// It centralizes timeouts, browser identification and retry with backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/81.0.4044.138 Safari/537.36"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Result holds the raw content from a URL fetch.
type Result struct {
	URL         string // requested URL
	FinalURL    string // URL after redirects
	HTML        string
	ContentType string
	StatusCode  int
	Attempts    int
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string

	// Retries is the number of additional attempts after a transient failure.
	Retries   int
	RetryBase time.Duration
	RetryMax  time.Duration

	// Jar holds session cookies; nil means a stateless client.
	Jar http.CookieJar
	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Retries:   3,
		RetryBase: 500 * time.Millisecond,
		RetryMax:  10 * time.Second,
	}
}

// Client performs GET and form POST requests with bounded retries.
// It is safe for concurrent use.
type Client struct {
	http    *http.Client
	options Options
}

// NewClient creates a client from opts. A nil opts uses DefaultOptions.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMax < o.RetryBase {
		o.RetryMax = o.RetryBase
	}
	if o.Retries < 0 {
		o.Retries = 0
	}

	return &Client{
		http: &http.Client{
			Timeout:   o.Timeout,
			Jar:       o.Jar,
			Transport: o.Transport,
		},
		options: o,
	}
}

// Get retrieves urlStr. A non-2xx status returns both the Result and an *Error.
func (c *Client) Get(ctx context.Context, urlStr string) (*Result, error) {
	return c.do(ctx, http.MethodGet, urlStr, nil)
}

// PostForm submits form as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, urlStr string, form url.Values) (*Result, error) {
	return c.do(ctx, http.MethodPost, urlStr, form)
}

func (c *Client) do(ctx context.Context, method, urlStr string, form url.Values) (*Result, error) {
	// Validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.options.RetryBase
	exp.MaxInterval = c.options.RetryMax
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.options.Retries)), ctx)

	var result *Result
	attempts := 0
	op := func() error {
		attempts++
		res, err := c.once(ctx, method, urlStr, form)
		result = res
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err = backoff.Retry(op, policy)
	if result != nil {
		result.Attempts = attempts
	}
	return result, err
}

func (c *Client) once(ctx context.Context, method, urlStr string, form url.Values) (*Result, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	// Create request with context
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	// Set headers
	req.Header.Set("User-Agent", c.options.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, value := range c.options.Headers {
		req.Header.Set(key, value)
	}

	// Execute request
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "HTTP request failed",
			Retryable: ctx.Err() == nil && isTransient(err),
			Cause:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// Read response body
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "failed to read response body",
			Retryable: ctx.Err() == nil && isTransient(err),
			Cause:     err,
		}
	}

	result := &Result{
		URL:         urlStr,
		FinalURL:    resp.Request.URL.String(),
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	// Check for non-success status
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	return result, nil
}

// IsRetryable reports whether err is a transient fetch failure worth retrying.
func IsRetryable(err error) bool {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Retryable
	}
	return false
}

// StatusCode returns the HTTP status carried by a fetch error, or 0.
func StatusCode(err error) int {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}

// isTransient classifies transport errors: timeouts, resets and truncated bodies.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
