package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tieout/pkg/record"
)

func TestDefinitionsCoverEverySource(t *testing.T) {
	defs, err := Definitions()
	require.NoError(t, err)

	for _, id := range record.IDs() {
		def, ok := defs[id]
		require.True(t, ok, "missing definition for %s", id)
		assert.NotEmpty(t, def.Name)
		assert.NotEmpty(t, def.Auth)
		assert.Positive(t, def.PageSize)
	}

	assert.Equal(t, AuthOAuth, defs[record.SourceSalesforce].Auth)
	assert.Equal(t, AuthOAuth, defs[record.SourceQuickBooks].Auth)
	assert.Equal(t, AuthBasic, defs[record.SourceAvalara].Auth)
	assert.Equal(t, AuthToken, defs[record.SourceShopify].Auth)
}

func TestOAuthDefinitionsCarryEndpoints(t *testing.T) {
	defs, err := Definitions()
	require.NoError(t, err)

	for _, id := range []record.SourceID{record.SourceSalesforce, record.SourceQuickBooks} {
		def := defs[id]
		assert.NotEmpty(t, def.AuthorizeURL, "%s authorize_url", id)
		assert.NotEmpty(t, def.TokenURL, "%s token_url", id)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("TIEOUT_CREDENTIALS_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultCallbackPort, cfg.CallbackPort)
	assert.Equal(t, "0.01", cfg.Epsilon.String())
	assert.False(t, cfg.SkipEnrichment)
	assert.Equal(t, "https://rest.avatax.com", cfg.Avalara.BaseURL)
	assert.Equal(t, "v59.0", cfg.Salesforce.APIVersion)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("TIEOUT_CREDENTIALS_DIR", t.TempDir())
	t.Setenv("TIEOUT_EPSILON", "0.05")
	t.Setenv("SALESFORCE_CLIENT_ID", "sf-client")
	t.Setenv("QUICKBOOKS_REALM_ID", "9341")
	t.Setenv("AVALARA_BASE_URL", "https://sandbox-rest.avatax.com")
	t.Setenv("SHOPIFY_SHOP", "acme")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.05", cfg.Epsilon.String())
	assert.Equal(t, "sf-client", cfg.Salesforce.ClientID)
	assert.Equal(t, "9341", cfg.QuickBooks.RealmID)
	assert.Equal(t, "https://sandbox-rest.avatax.com", cfg.Avalara.BaseURL)
	assert.Equal(t, "https://acme.myshopify.com", cfg.Shopify.BaseURL)
}

func TestLoadRejectsBadEpsilon(t *testing.T) {
	viper.Reset()
	t.Setenv("TIEOUT_CREDENTIALS_DIR", t.TempDir())
	t.Setenv("TIEOUT_EPSILON", "lots")

	_, err := Load()
	require.Error(t, err)
}
