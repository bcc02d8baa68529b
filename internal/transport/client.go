package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/logging"
)

// Client provides HTTP client functionality with authentication and a
// bounded retry budget for rate-limit and transient server failures.
type Client struct {
	http       *http.Client
	auth       Authenticator
	source     string
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithMaxRetries sets the retry budget for 429 and 5xx responses.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBackoff sets the base and maximum backoff delays.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.backoff = base
		c.maxBackoff = max
	}
}

// New creates a transport client for one source with the given authenticator.
func New(source string, auth Authenticator, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:       &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:       auth,
		source:     source,
		maxRetries: constants.MaxRetries,
		backoff:    constants.RetryBackoff,
		maxBackoff: constants.MaxRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET with retry on rate-limit and transient
// server failures. The caller owns the response body on success.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	delay := c.backoff

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctxError(ctx)
			}
			// Auth failures surface immediately so the caller can trigger
			// re-authentication; only network-level failures are retried.
			if errors.IsAuthFailure(err) {
				return nil, err
			}
			if attempt < c.maxRetries {
				if werr := c.wait(ctx, delay); werr != nil {
					return nil, werr
				}
				delay = c.nextDelay(delay)
				continue
			}
			return nil, errors.WrapAPI(c.source, 0, err)
		}

		if !retryable(resp.StatusCode) {
			return resp, nil
		}

		// Drain so the connection can be reused across attempts.
		retryAfter := resp.Header.Get("Retry-After")
		_ = resp.Body.Close()

		if attempt >= c.maxRetries {
			return nil, errors.NewAPIError(c.source, resp.StatusCode, "retry budget exhausted")
		}

		wait := delay
		if secs, perr := strconv.Atoi(retryAfter); perr == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
			if wait > c.maxBackoff {
				wait = c.maxBackoff
			}
		}
		logging.Ctx(ctx).Debug().
			Str("source", c.source).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("retrying throttled request")

		if werr := c.wait(ctx, wait); werr != nil {
			return nil, werr
		}
		delay = c.nextDelay(delay)
	}
}

// do builds, authenticates, and executes a single request attempt.
func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if err := c.auth.Apply(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	// Auth failures are surfaced immediately, never retried silently.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_ = resp.Body.Close()
		return nil, errors.NewAPIError(c.source, resp.StatusCode, "request rejected")
	}
	return resp, nil
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctxError(ctx)
	case <-timer.C:
		return nil
	}
}

func (c *Client) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}

// retryable reports whether a status code is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func ctxError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.ErrTimeout
	}
	return errors.ErrCanceled
}
