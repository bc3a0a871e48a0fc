// Package upstream wraps outbound HTTP calls to third-party services with a
// per-call timeout, a circuit breaker and optional exponential backoff.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour. MaxRetries of zero
// disables retries entirely.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	Backoff BackoffConfig
	MaxBody int64
	Breaker gobreaker.Settings
	Headers map[string]string
}

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrServerError      = errors.New("server error")
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrNoHTTPClient     = errors.New("http client not configured")
	ErrInvalidConfig    = errors.New("invalid backoff configuration")
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d", e.Err, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

const defaultMaxBody = 10 << 20

// Client performs GET requests against one upstream.
type Client struct {
	name    string
	http    *http.Client
	opts    Options
	circuit *gobreaker.CircuitBreaker
}

// New creates a Client. The breaker name defaults to the client name.
func New(name string, httpClient *http.Client, opts Options) *Client {
	settings := opts.Breaker
	if settings.Name == "" {
		settings.Name = name
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 5
	}
	if settings.Interval == 0 {
		settings.Interval = 1 * time.Minute
	}
	if settings.Timeout == 0 {
		settings.Timeout = 2 * time.Minute
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	if opts.Backoff.InitialInterval <= 0 {
		opts.Backoff.InitialInterval = 500 * time.Millisecond
	}

	return &Client{
		name:    name,
		http:    httpClient,
		opts:    opts,
		circuit: gobreaker.NewCircuitBreaker(settings),
	}
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.name
}

// Get fetches url and returns the full response body. The body is read inside
// the per-call timeout so a stalled upstream cannot hang the caller.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if c.http == nil {
		return nil, ErrNoHTTPClient
	}
	if c.opts.Backoff.MaxRetries < 0 {
		return nil, ErrInvalidConfig
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			return c.do(ctx, url, header)
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, c.name, err)
		}

		if attempt >= c.opts.Backoff.MaxRetries || !retryable(err) {
			return nil, err
		}

		delay := c.opts.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.opts.Backoff.MaxInterval > 0 && delay > c.opts.Backoff.MaxInterval {
			delay = c.opts.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

func (c *Client) do(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &StatusError{Code: resp.StatusCode, Err: ErrRateLimited}
	case resp.StatusCode >= 500:
		return nil, &StatusError{Code: resp.StatusCode, Err: ErrServerError}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{Code: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.name, err)
	}
	return body, nil
}

// StatusCode extracts the upstream HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// retryable reports whether a failed attempt may succeed on retry. Client
// errors other than 429 are final.
func retryable(err error) bool {
	code := StatusCode(err)
	if code == 0 {
		return true
	}
	return code == http.StatusTooManyRequests || code >= 500
}
