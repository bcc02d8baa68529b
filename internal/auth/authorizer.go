package auth

import (
	"context"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/logging"
)

// Grant is the outcome of a completed interactive authorization: the code
// to exchange and the redirect URI it was delivered to (the token endpoint
// requires both).
type Grant struct {
	Code        string
	RedirectURI string
}

// Authorizer isolates the environment-coupled part of the authorization
// flow (browser redirect, loopback listener) behind a capability interface
// so the token lifecycle is testable without a real browser or network.
type Authorizer interface {
	Authorize(ctx context.Context, authorizeURL, clientID, state string) (Grant, error)
}

// BrowserAuthorizer runs the real interactive flow: it binds a loopback
// callback, opens the system browser at the authorization endpoint, and
// waits for the redirect.
type BrowserAuthorizer struct {
	// Port fixes the loopback port; 0 uses an ephemeral port.
	Port int

	// Timeout bounds the wait for the redirect. Zero uses the default.
	Timeout time.Duration

	// OpenURL overrides browser launching. Used by tests.
	OpenURL func(url string) error
}

// Authorize implements the Authorizer interface.
func (b *BrowserAuthorizer) Authorize(ctx context.Context, authorizeURL, clientID, state string) (Grant, error) {
	timeout := b.Timeout
	if timeout == 0 {
		timeout = constants.AuthCallbackTimeout
	}

	callback, err := NewCallback(b.Port, state, timeout)
	if err != nil {
		return Grant{}, err
	}
	// Wait closes the listener on its own exit paths; this covers the
	// paths before Wait runs.
	defer callback.Close()

	redirectURI := callback.RedirectURI()

	authURL, err := buildAuthorizeURL(authorizeURL, clientID, redirectURI, state)
	if err != nil {
		return Grant{}, err
	}

	open := b.OpenURL
	if open == nil {
		open = openBrowser
	}
	if err := open(authURL); err != nil {
		// The URL is still usable manually; log and keep waiting.
		logging.Ctx(ctx).Warn().Err(err).Str("url", authURL).Msg("could not launch browser; open the URL manually")
	}

	code, err := callback.Wait(ctx)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Code: code, RedirectURI: redirectURI}, nil
}

func buildAuthorizeURL(base, clientID, redirectURI, state string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// openBrowser launches the default browser for the current platform.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
