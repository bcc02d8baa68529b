// Package transport provides authenticated HTTP access to remote source
// APIs with bounded retry and backoff on transient failures.
package transport

import (
	"context"
	"encoding/base64"
	"net/http"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ context.Context, _ *http.Request) error {
	return nil
}

// TokenSource supplies a currently valid bearer token on demand. The OAuth
// manager implements this, so every request picks up refreshed tokens
// without the client knowing about the token lifecycle.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// BearerAuth implements Bearer token authentication backed by a TokenSource.
type BearerAuth struct {
	Source TokenSource
}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.Source.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// HeaderAuth implements static key authentication via a custom header.
type HeaderAuth struct {
	Header string
	Value  string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(_ context.Context, req *http.Request) error {
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, a.Value)
	return nil
}

// BasicAuth implements HTTP Basic authentication from a static credential
// pair (e.g. Avalara account ID + license key).
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements the Authenticator interface for BasicAuth.
func (a *BasicAuth) Apply(_ context.Context, req *http.Request) error {
	raw := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "Basic "+raw)
	return nil
}
