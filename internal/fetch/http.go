package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pxsubmit/internal/ratelimit"
)

// HTTPFetcher downloads http and https URLs, retrying server errors with backoff.
type HTTPFetcher struct {
	client     *http.Client
	limiter    ratelimit.Limiter
	maxRetries int
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if hc != nil {
			f.client = hc
		}
	}
}

// WithLimiter overrides the pacing limiter.
func WithLimiter(l ratelimit.Limiter) HTTPOption {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.limiter = l
		}
	}
}

func NewHTTPFetcher(timeout time.Duration, maxRetries int, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:     &http.Client{Timeout: timeout},
		limiter:    ratelimit.New(ratelimit.Config{MaxRetries: maxRetries}),
		maxRetries: max(maxRetries, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src *url.URL, dest string) error {
	retryable := func(err error) bool {
		var se *httpStatusError
		if errors.As(err, &se) {
			return se.status >= 500 || se.status == http.StatusTooManyRequests
		}
		return ctx.Err() == nil
	}
	return ratelimit.Retry(ctx, f.limiter, f.maxRetries, retryable, func(int) error {
		return f.once(ctx, src, dest)
	})
}

func (f *HTTPFetcher) once(ctx context.Context, src *url.URL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode}
	}
	return writeFile(dest, resp.Body)
}
