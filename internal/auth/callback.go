package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/agentstation/tieout/pkg/errors"
)

// Callback is a one-shot loopback listener that captures the authorization
// redirect. It accepts exactly one redirect carrying code and state query
// parameters, validates state against the value generated at authorization
// start, and closes after one accepted request or timeout.
type Callback struct {
	listener net.Listener
	state    string
	timeout  time.Duration
}

// NewCallback binds a loopback listener. Port 0 picks an ephemeral port.
func NewCallback(port int, state string, timeout time.Duration) (*Callback, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, errors.NewAuthError("", "oauth", "failed to bind loopback listener", err)
	}
	return &Callback{
		listener: listener,
		state:    state,
		timeout:  timeout,
	}, nil
}

// RedirectURI returns the redirect target to register with the
// authorization request.
func (c *Callback) RedirectURI() string {
	return fmt.Sprintf("http://%s/callback", c.listener.Addr().String())
}

// Close releases the listener. Safe to call more than once.
func (c *Callback) Close() error {
	return c.listener.Close()
}

type callbackResult struct {
	code string
	err  error
}

// Wait serves until one redirect is accepted, the timeout elapses, or ctx
// is canceled. The listener is closed on every exit path.
func (c *Callback) Wait(ctx context.Context) (string, error) {
	results := make(chan callbackResult, 1)

	// Only the first result counts. Later redirects (reloads, racing
	// duplicates) still get a response but must never block their handler.
	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if errCode := q.Get("error"); errCode != "" {
			http.Error(w, "Authorization denied. You can close this window.", http.StatusForbidden)
			deliver(callbackResult{err: errors.NewAuthError("", "oauth", "authorization denied: "+errCode, nil)})
			return
		}
		if q.Get("state") != c.state {
			// A mismatched state is a cross-request injection attempt, not
			// a user error; reject without completing the flow.
			http.Error(w, "State mismatch.", http.StatusBadRequest)
			deliver(callbackResult{err: errors.NewAuthError("", "oauth", "state parameter mismatch", nil)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			deliver(callbackResult{err: errors.NewAuthError("", "oauth", "redirect carried no authorization code", nil)})
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>Authorization complete. You can close this window.</body></html>")
		deliver(callbackResult{code: code})
	})

	server := &http.Server{Handler: mux}
	go func() {
		// Serve returns once the listener closes; that is the shutdown path.
		_ = server.Serve(c.listener)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		_ = c.listener.Close()
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.code, res.err
	case <-timer.C:
		return "", errors.NewTimeoutError("authorization callback", c.timeout.String(), "no redirect received")
	case <-ctx.Done():
		return "", errors.ErrCanceled
	}
}
