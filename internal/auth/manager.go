package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/logging"
)

// Config holds the OAuth application settings for one identity provider.
type Config struct {
	Source       string // source name, also the credential store key
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
}

// Manager drives the token lifecycle for one identity provider: interactive
// grant, unattended refresh within the expiry safety margin, and credential
// clearing. Safe for concurrent use; refreshes are coalesced so concurrent
// Token calls trigger at most one network refresh.
type Manager struct {
	cfg        Config
	store      Store
	authorizer Authorizer
	http       *http.Client

	// serializes credential access and coalesces refreshes
	mu sync.Mutex

	margin time.Duration
	now    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAuthorizer replaces the interactive authorizer. Used by tests and
// headless environments.
func WithAuthorizer(a Authorizer) ManagerOption {
	return func(m *Manager) {
		m.authorizer = a
	}
}

// WithHTTPClient replaces the HTTP client used for token exchanges.
func WithHTTPClient(h *http.Client) ManagerOption {
	return func(m *Manager) {
		m.http = h
	}
}

// WithExpiryMargin overrides the refresh safety margin.
func WithExpiryMargin(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = d
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a token manager over the given credential store.
func NewManager(cfg Config, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:        cfg,
		store:      store,
		authorizer: &BrowserAuthorizer{},
		http:       &http.Client{Timeout: constants.TokenExchangeTimeout},
		margin:     constants.TokenExpirySafetyMargin,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticate runs the interactive authorization flow: redirect to the
// authorization endpoint, capture the code on the loopback callback, and
// exchange it for tokens at the token endpoint. The resulting credential
// is persisted.
func (m *Manager) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := uuid.NewString()
	grant, err := m.authorizer.Authorize(ctx, m.cfg.AuthorizeURL, m.cfg.ClientID, state)
	if err != nil {
		return err
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"code":          {grant.Code},
		"redirect_uri":  {grant.RedirectURI},
	}
	cred, err := m.exchange(ctx, form)
	if err != nil {
		return err
	}

	if err := m.store.Save(m.cfg.Source, cred); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("source", m.cfg.Source).Msg("authorization complete")
	return nil
}

// Token returns a currently valid access token, transparently refreshing
// first when the stored token expires within the safety margin. A failure
// means re-authentication is required, not a transient error.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.store.Load(m.cfg.Source)
	if err != nil {
		return "", errors.NewAuthError(m.cfg.Source, "oauth", "not authenticated", err)
	}

	if m.fresh(cred) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", errors.NewAuthError(m.cfg.Source, "oauth", "token expired and no refresh token stored", nil)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"refresh_token": {cred.RefreshToken},
	}
	refreshed, err := m.exchange(ctx, form)
	if err != nil {
		// Irrecoverable refresh failure invalidates the stored credential
		// so the next caller is sent straight to re-authentication.
		if errors.IsAuthFailure(err) {
			_ = m.store.Clear(m.cfg.Source)
		}
		return "", err
	}

	// Providers may omit the refresh token on refresh; keep the old one.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}
	if refreshed.InstanceURL == "" {
		refreshed.InstanceURL = cred.InstanceURL
	}

	if err := m.store.Save(m.cfg.Source, refreshed); err != nil {
		return "", err
	}
	logging.Ctx(ctx).Debug().Str("source", m.cfg.Source).Time("expires_at", refreshed.ExpiresAt).Msg("token refreshed")
	return refreshed.AccessToken, nil
}

// Clear wipes the stored credential. Idempotent.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Clear(m.cfg.Source)
}

// Valid reports whether a stored token is currently valid. Pure predicate:
// no side effects, no network call.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, err := m.store.Load(m.cfg.Source)
	if err != nil {
		return false
	}
	return m.fresh(cred)
}

// InstanceURL returns the provider-assigned instance URL from the stored
// credential, or the empty string when unauthenticated.
func (m *Manager) InstanceURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, err := m.store.Load(m.cfg.Source)
	if err != nil {
		return ""
	}
	return cred.InstanceURL
}

// fresh reports whether the credential's token is valid past the safety
// margin from now.
func (m *Manager) fresh(cred *Credential) bool {
	if cred.AccessToken == "" {
		return false
	}
	return m.now().Add(m.margin).Before(cred.ExpiresAt)
}

// tokenResponse is the token endpoint's JSON payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	InstanceURL  string `json:"instance_url,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// exchange POSTs a grant to the token endpoint and maps the response to a
// credential. Non-success statuses are AuthErrors: callers must treat them
// as "re-authentication required".
func (m *Manager) exchange(ctx context.Context, form url.Values) (*Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.NewAuthError(m.cfg.Source, "oauth", "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, errors.NewAuthError(m.cfg.Source, "oauth", "token endpoint unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewAuthError(m.cfg.Source, "oauth", "failed to read token response", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, errors.NewAuthError(m.cfg.Source, "oauth", "undecodable token response", err)
	}

	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		msg := tr.ErrorDesc
		if msg == "" {
			msg = tr.Error
		}
		if msg == "" {
			msg = "token exchange rejected"
		}
		return nil, errors.NewAuthError(m.cfg.Source, "oauth", msg, nil)
	}

	return &Credential{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		InstanceURL:  tr.InstanceURL,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
