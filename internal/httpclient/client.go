// Package httpclient provides the HTTP client used to fetch raw source
// documents, with timeout and retry behavior suitable for flaky upstream
// directories.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTimeout is the per-request timeout when none is configured.
	DefaultTimeout = 30 * time.Second

	// defaultMaxTries bounds the retry loop for transient failures.
	defaultMaxTries = 4
)

// Client fetches documents over HTTP.
type Client interface {
	// Get retrieves the document at url, retrying transient failures.
	Get(ctx context.Context, url string) ([]byte, error)
}

// defaultClient is the standard Client implementation.
type defaultClient struct {
	httpClient *http.Client
	maxTries   uint
}

// NewDefaultClient creates a client with the given timeout. A zero timeout
// uses DefaultTimeout.
func NewDefaultClient(timeout time.Duration) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &defaultClient{
		httpClient: &http.Client{Timeout: timeout},
		maxTries:   defaultMaxTries,
	}
}

// Get retrieves the document at url. Server errors and transport failures
// are retried with exponential backoff; client errors (4xx) are permanent.
func (c *defaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	operation := func() ([]byte, error) {
		return c.getOnce(ctx, url)
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return data, nil
}

func (c *defaultClient) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpErr := NewHTTPError(resp.StatusCode, url, http.StatusText(resp.StatusCode))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(httpErr)
		}
		return nil, httpErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// IsNotFound reports whether err is an HTTP 404 error.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
