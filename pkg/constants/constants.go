// Package constants provides shared constants used throughout the tieout
// codebase. This includes timeouts, retry budgets, concurrency limits, and
// file permissions that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to source APIs
	DefaultHTTPTimeout = 30 * time.Second

	// SourceFetchTimeout is the timeout for pulling a full collection from one source
	SourceFetchTimeout = 5 * time.Minute

	// AuthCallbackTimeout is how long the loopback listener waits for the
	// browser redirect before the interactive authorization fails
	AuthCallbackTimeout = 2 * time.Minute

	// TokenExchangeTimeout is the timeout for code and refresh exchanges
	// against a token endpoint
	TokenExchangeTimeout = 30 * time.Second

	// TokenExpirySafetyMargin triggers a refresh when a stored token expires
	// within this window, so downstream calls never race expiry
	TokenExpirySafetyMargin = 60 * time.Second

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for rate-limited
	// or transiently failing requests
	MaxRetries = 3

	// MaxConcurrentEnrichments bounds concurrent per-record enrichment calls
	// within one fetch, to respect provider rate limits
	MaxConcurrentEnrichments = 5

	// MaxConcurrentSources bounds how many sources are pulled concurrently
	MaxConcurrentSources = 4

	// DefaultPageSize is the default number of records requested per page
	DefaultPageSize = 100
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// SecureFilePermissions is for sensitive files like stored credentials (rw-------)
	SecureFilePermissions = 0600
)
