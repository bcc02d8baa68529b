// Package errors provides custom error types for the tieout system.
// The taxonomy distinguishes failures that require re-authentication,
// transient remote failures worth retrying, and API contract drift,
// so callers can decide whether a partial result is usable.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the tieout system
var (
	// ErrAuthFailure indicates authentication is invalid and cannot be
	// recovered without re-authenticating interactively
	ErrAuthFailure = errors.New("authentication failure")

	// ErrRemoteUnavailable indicates a remote system is unreachable or
	// exhausted the retry budget
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrMalformedResponse indicates a remote payload did not match the
	// expected shape (API contract drift)
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRateLimited indicates the remote API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrNoCredentials indicates no stored credentials exist for a source
	ErrNoCredentials = errors.New("no credentials stored")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrIncomplete indicates a run finished with only a partial result
	ErrIncomplete = errors.New("incomplete result")
)

// AuthError represents an authentication or authorization failure for a
// remote source. It is never retryable without re-authentication.
type AuthError struct {
	Source  string
	Method  string // "oauth", "api_key", "basic"
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.Source, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthFailure
}

// NewAuthError creates a new AuthError
func NewAuthError(source, method, message string, err error) *AuthError {
	return &AuthError{
		Source:  source,
		Method:  method,
		Message: message,
		Err:     err,
	}
}

// APIError represents an error response from a remote source API
type APIError struct {
	Source     string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == 429:
		return target == ErrRateLimited || target == ErrRemoteUnavailable
	case e.StatusCode == 401 || e.StatusCode == 403:
		return target == ErrAuthFailure
	case e.StatusCode >= 500:
		return target == ErrRemoteUnavailable
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(source string, statusCode int, message string) *APIError {
	return &APIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ParseError represents a remote payload that failed validation against
// the expected shape. Non-retryable.
type ParseError struct {
	Source  string
	Field   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed response from %s: field %s: %s", e.Source, e.Field, e.Message)
	}
	return fmt.Sprintf("malformed response from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// NewParseError creates a new ParseError
func NewParseError(source, field, message string, err error) *ParseError {
	return &ParseError{
		Source:  source,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// AlignmentConflictError represents a data-quality issue discovered during
// reconciliation, such as duplicate non-split records sharing an alignment
// key. Reported, never fatal to the run.
type AlignmentConflictError struct {
	Key     string
	Source  string
	Count   int
	Message string
}

// Error implements the error interface
func (e *AlignmentConflictError) Error() string {
	if e.Count > 0 {
		return fmt.Sprintf("alignment conflict for key %q in %s (%d records): %s", e.Key, e.Source, e.Count, e.Message)
	}
	return fmt.Sprintf("alignment conflict for key %q in %s: %s", e.Key, e.Source, e.Message)
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
		Message:   message,
	}
}

// FetchError represents a failure while pulling a collection from one
// remote source. It carries the source so multi-source runs can report
// which side failed.
type FetchError struct {
	Source string
	Pages  int
	Err    error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Pages > 0 {
		return fmt.Sprintf("fetch error for source %s after %d pages: %v", e.Source, e.Pages, e.Err)
	}
	return fmt.Sprintf("fetch error for source %s: %v", e.Source, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(source string, pages int, err error) *FetchError {
	return &FetchError{
		Source: source,
		Pages:  pages,
		Err:    err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsAuthFailure checks if an error requires re-authentication
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailure)
}

// IsRemoteUnavailable checks if an error indicates remote unavailability
func IsRemoteUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// IsMalformedResponse checks if an error indicates API contract drift
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(source, field string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(source, field, err.Error(), err)
}

// WrapAPI wraps an error as an APIError
func WrapAPI(source string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
