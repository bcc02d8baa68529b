// Package app wires configuration, credential stores, and source clients
// into a ready-to-use tie-out client for the CLI.
package app

import (
	tieout "github.com/agentstation/tieout"
	"github.com/agentstation/tieout/internal/auth"
	"github.com/agentstation/tieout/internal/config"
	"github.com/agentstation/tieout/internal/sources"
	"github.com/agentstation/tieout/internal/sources/avalara"
	"github.com/agentstation/tieout/internal/sources/quickbooks"
	"github.com/agentstation/tieout/internal/sources/salesforce"
	"github.com/agentstation/tieout/internal/sources/shopify"
	"github.com/agentstation/tieout/pkg/constants"
	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// App holds the wired application state for one CLI invocation.
type App struct {
	Config *config.Config

	store    auth.Store
	managers map[record.SourceID]*auth.Manager
}

// New loads configuration and prepares the credential store and token
// managers for the OAuth sources.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := auth.NewFileStore(cfg.CredentialsDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		store:    store,
		managers: make(map[record.SourceID]*auth.Manager),
	}

	authorizer := &auth.BrowserAuthorizer{
		Port:    cfg.CallbackPort,
		Timeout: constants.AuthCallbackTimeout,
	}
	a.managers[record.SourceSalesforce] = auth.NewManager(auth.Config{
		Source:       record.SourceSalesforce.String(),
		ClientID:     cfg.Salesforce.ClientID,
		ClientSecret: cfg.Salesforce.ClientSecret,
		AuthorizeURL: cfg.Salesforce.AuthorizeURL,
		TokenURL:     cfg.Salesforce.TokenURL,
	}, store, auth.WithAuthorizer(authorizer))
	a.managers[record.SourceQuickBooks] = auth.NewManager(auth.Config{
		Source:       record.SourceQuickBooks.String(),
		ClientID:     cfg.QuickBooks.ClientID,
		ClientSecret: cfg.QuickBooks.ClientSecret,
		AuthorizeURL: cfg.QuickBooks.AuthorizeURL,
		TokenURL:     cfg.QuickBooks.TokenURL,
	}, store, auth.WithAuthorizer(authorizer))

	return a, nil
}

// Manager returns the token manager for an OAuth source.
func (a *App) Manager(id record.SourceID) (*auth.Manager, bool) {
	m, ok := a.managers[id]
	return m, ok
}

// SourceClient builds the client for one source, validating that its
// settings and credentials are in place.
func (a *App) SourceClient(id record.SourceID) (sources.Client, error) {
	switch id {
	case record.SourceSalesforce:
		m := a.managers[id]
		base := m.InstanceURL()
		if base == "" {
			return nil, errors.NewAuthError(id.String(), "oauth",
				"no instance URL stored; run `tieout auth login salesforce`", nil)
		}
		return salesforce.New(salesforce.Config{
			BaseURL:    base,
			APIVersion: a.Config.Salesforce.APIVersion,
		}, m), nil

	case record.SourceQuickBooks:
		if a.Config.QuickBooks.RealmID == "" {
			return nil, errors.NewConfigError(id.String(), "QUICKBOOKS_REALM_ID is not set", nil)
		}
		return quickbooks.New(quickbooks.Config{
			BaseURL:  a.Config.QuickBooks.BaseURL,
			RealmID:  a.Config.QuickBooks.RealmID,
			PageSize: a.Config.QuickBooks.PageSize,
		}, a.managers[id]), nil

	case record.SourceAvalara:
		if a.Config.Avalara.AccountID == "" || a.Config.Avalara.LicenseKey == "" {
			return nil, errors.NewConfigError(id.String(), "AVALARA_ACCOUNT_ID and AVALARA_LICENSE_KEY are required", nil)
		}
		return avalara.New(avalara.Config{
			BaseURL:     a.Config.Avalara.BaseURL,
			AccountID:   a.Config.Avalara.AccountID,
			LicenseKey:  a.Config.Avalara.LicenseKey,
			CompanyCode: a.Config.Avalara.CompanyCode,
			PageSize:    a.Config.Avalara.PageSize,
		}), nil

	case record.SourceShopify:
		if a.Config.Shopify.BaseURL == "" || a.Config.Shopify.AccessToken == "" {
			return nil, errors.NewConfigError(id.String(), "SHOPIFY_SHOP and SHOPIFY_ACCESS_TOKEN are required", nil)
		}
		return shopify.New(shopify.Config{
			BaseURL:     a.Config.Shopify.BaseURL,
			AccessToken: a.Config.Shopify.AccessToken,
			APIVersion:  a.Config.Shopify.APIVersion,
			PageSize:    a.Config.Shopify.PageSize,
		}), nil
	}
	return nil, errors.NewValidationError("source", id.String(), "unknown source")
}

// Client builds the tie-out client over the given source chain.
func (a *App) Client(chain []record.SourceID, opts ...tieout.Option) (*tieout.Client, error) {
	clients := make([]sources.Client, 0, len(chain))
	for _, id := range chain {
		client, err := a.SourceClient(id)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	opts = append(opts,
		tieout.WithSources(clients...),
		tieout.WithEpsilon(a.Config.Epsilon),
	)
	if a.Config.SkipEnrichment {
		opts = append(opts, tieout.WithSkipEnrichment())
	}
	return tieout.New(opts...)
}

// ParseChain resolves source names into a chain, defaulting to all known
// sources in their canonical order.
func ParseChain(names []string) ([]record.SourceID, error) {
	if len(names) == 0 {
		return record.IDs(), nil
	}
	known := make(map[record.SourceID]bool, len(record.IDs()))
	for _, id := range record.IDs() {
		known[id] = true
	}

	chain := make([]record.SourceID, 0, len(names))
	for _, name := range names {
		id := record.SourceID(name)
		if !known[id] {
			return nil, errors.NewValidationError("source", name, "unknown source")
		}
		chain = append(chain, id)
	}
	return chain, nil
}
